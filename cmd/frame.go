package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"firestige.xyz/edie/pkg/novatel"
)

var frameCmd = &cobra.Command{
	Use:   "frame <file>",
	Short: "List the frames found in a log",
	Long: `Split a log into frames without decoding them and print one line per
frame: offset, length, format and a printable preview. Bytes that do not
belong to any frame are listed as UNKNOWN.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return runFrame(f, frameJSON, cmd.OutOrStdout())
	},
}

var frameJSON bool

func init() {
	frameCmd.Flags().BoolVar(&frameJSON, "json", false, "also frame JSON messages")
}

const previewLength = 48

func runFrame(r io.Reader, json bool, w io.Writer) error {
	fr := novatel.NewFramer()
	fr.SetReportUnknownBytes(true)
	fr.SetFrameJSON(json)

	var offset int
	emit := func(frame []byte, format novatel.HeaderFormat) error {
		_, err := fmt.Fprintf(w, "%10d %6d %-16s %s\n", offset, len(frame), format, preview(frame))
		offset += len(frame)
		return err
	}
	drain := func() error {
		for {
			frame, meta, err := fr.Read()
			st := novatel.StatusOf(err)
			if st.Retryable() {
				return nil
			}
			if st != novatel.StatusSuccess && st != novatel.StatusUnknown {
				return err
			}
			if err := emit(frame, meta.Format); err != nil {
				return err
			}
		}
	}

	buf := make([]byte, 4096)
	for {
		n, rerr := r.Read(buf)
		for written := 0; written < n; {
			m, err := fr.Write(buf[written:n])
			if err != nil && novatel.StatusOf(err) != novatel.StatusBufferFull {
				return err
			}
			written += m
			if err := drain(); err != nil {
				return err
			}
			if m == 0 && fr.AvailableBytes() == 0 {
				// a full buffer that frames nothing
				if err := emit(fr.Flush(), novatel.FormatUnknown); err != nil {
					return err
				}
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return rerr
		}
	}
	if rest := fr.Flush(); len(rest) > 0 {
		return emit(rest, novatel.FormatUnknown)
	}
	return nil
}

func preview(frame []byte) string {
	if len(frame) > previewLength {
		frame = frame[:previewLength]
	}
	q := strconv.QuoteToASCII(string(frame))
	return q[1 : len(q)-1]
}
