package config

import (
	"fmt"
	"strconv"
	"strings"

	"firestige.xyz/edie/pkg/novatel"
)

// Build converts the filter section into a novatel.Filter.
func (c FilterConfig) Build() (*novatel.Filter, error) {
	f := novatel.NewFilter()
	for i, m := range c.Messages {
		format := novatel.FormatAll
		if m.Format != "" {
			var err error
			if format, err = novatel.ParseHeaderFormat(m.Format); err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", i, err)
			}
		}
		source, err := parseSource(m.Source)
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		switch {
		case m.Name != "":
			f.IncludeMessageName(m.Name, format, source)
		case m.ID != 0:
			f.IncludeMessageID(m.ID, format, source)
		default:
			return nil, fmt.Errorf("messages[%d]: name or id is required", i)
		}
	}
	f.InvertMessageNameFilter(c.InvertMessages)
	f.InvertMessageIDFilter(c.InvertMessages)

	statuses := make([]novatel.TimeStatus, 0, len(c.TimeStatus))
	for _, s := range c.TimeStatus {
		ts, err := novatel.ParseTimeStatus(s)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, ts)
	}
	if len(statuses) > 0 {
		f.IncludeTimeStatus(statuses...)
	}
	f.InvertTimeStatusFilter(c.InvertTimeStatus)

	if c.LowerTime != nil {
		f.SetIncludeLowerTime(c.LowerTime.Week, c.LowerTime.Seconds)
	}
	if c.UpperTime != nil {
		f.SetIncludeUpperTime(c.UpperTime.Week, c.UpperTime.Seconds)
	}
	f.InvertTimeFilter(c.InvertTime)

	if c.DecimationMs > 0 {
		f.SetIncludeDecimation(c.DecimationMs)
	}
	f.InvertDecimationFilter(c.InvertDecimation)
	f.IncludeNMEAMessages(c.IncludeNMEA)
	return f, nil
}

func parseSource(s string) (novatel.MeasurementSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "primary":
		return novatel.SourcePrimary, nil
	case "secondary":
		return novatel.SourceSecondary, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid measurement source %q", s)
	}
	return novatel.MeasurementSource(n), nil
}
