// Package plugins registers all built-in plugins.
package plugins

import (
	"firestige.xyz/edie/internal/source/file"
	"firestige.xyz/edie/internal/source/pcap"
	"firestige.xyz/edie/pkg/plugin"
	"firestige.xyz/edie/plugins/reporter/console"
	filereporter "firestige.xyz/edie/plugins/reporter/file"
	"firestige.xyz/edie/plugins/reporter/kafka"
)

func init() {
	// Register source plugins
	plugin.RegisterSource(file.Name, file.NewSource)
	plugin.RegisterSource(pcap.Name, pcap.NewSource)

	// Register reporter plugins
	plugin.RegisterReporter("console", console.NewConsoleReporter)
	plugin.RegisterReporter("file", filereporter.NewFileReporter)
	plugin.RegisterReporter("kafka", kafka.NewKafkaReporter)
}
