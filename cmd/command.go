package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/edie/pkg/novatel"
	"firestige.xyz/edie/pkg/schema"
)

var commandCmd = &cobra.Command{
	Use:   "command <abbreviated ascii command>",
	Short: "Encode a receiver command",
	Long: `Encode an abbreviated ASCII command, such as "LOG COM1 BESTPOSA ONTIME 1",
into a full ASCII or binary command frame ready to send to the receiver.

Binary frames are printed as hex unless --raw is given.

Examples:
  edie command -s messages.json "LOG COM1 BESTPOSA ONTIME 1"
  edie command -s messages.json --format binary "INTERFACEMODE COM2 NOVATEL NOVATEL"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := loadDatabase(appCfg)
		if err != nil {
			return err
		}
		return runCommand(db, strings.Join(args, " "), commandFormat, commandRaw, cmd.OutOrStdout())
	},
}

var (
	commandFormat string
	commandRaw    bool
)

func init() {
	commandCmd.Flags().StringVarP(&commandFormat, "format", "f", "ascii",
		"output format: ascii or binary")
	commandCmd.Flags().BoolVar(&commandRaw, "raw", false,
		"write binary frames without hex encoding")
}

func runCommand(db *schema.Database, command, format string, raw bool, w io.Writer) error {
	f, err := novatel.ParseEncodeFormat(format)
	if err != nil {
		return err
	}
	frame, err := novatel.NewCommander(db).Encode(command, f)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", command, err)
	}
	if f == novatel.EncodeBinary && !raw {
		_, err = fmt.Fprintln(w, hex.EncodeToString(frame))
		return err
	}
	_, err = w.Write(frame)
	return err
}
