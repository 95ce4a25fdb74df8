package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
	"unicode"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/codec"
	"github.com/dbehnke/bts-codec/pkg/engine"
)

const (
	formatText = "text"
	formatYAML = "yaml"
	formatBits = "bits"
)

var errBadFormat = errors.New("unknown output format")

// newEngine builds an engine for the one-shot commands. Logs go to stderr.
func newEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	settings, err := engine.SettingsFrom(&cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("invalid codec configuration: %w", err)
	}
	return engine.New(settings, log), nil
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// requestFlags adds the per request overrides shared by encode and decode.
func requestFlags(cmd *cobra.Command) {
	cmd.Flags().String("channel", "", "Channel: xcch, rach, sch, pdtch, tch_f, tch_h")
	cmd.Flags().Int("bsic", -1, "BSIC for RACH (overrides config)")
	cmd.Flags().Int("ft", -1, "AMR frame type index into the active codec set")
	cmd.Flags().Int("cmr", -1, "AMR codec mode request; sends CMR in-band instead of FT")
	_ = cmd.MarkFlagRequired("channel")
}

// buildRequest reads the shared request flags.
func buildRequest(cmd *cobra.Command) (engine.Request, error) {
	name, _ := cmd.Flags().GetString("channel")
	ch, err := engine.ParseChannel(name)
	if err != nil {
		return engine.Request{}, err
	}
	req := engine.Request{Channel: ch}

	if b, _ := cmd.Flags().GetInt("bsic"); b >= 0 {
		if b > 63 {
			return req, fmt.Errorf("bsic %d: %w", b, codec.ErrInvalidBSIC)
		}
		v := uint8(b)
		req.BSIC = &v
	}

	ft, _ := cmd.Flags().GetInt("ft")
	cmr, _ := cmd.Flags().GetInt("cmr")
	if ft >= 0 || cmr >= 0 {
		if ft > 3 || cmr > 3 {
			return req, fmt.Errorf("amr ids are 0..3: %w", codec.ErrModeOutOfRange)
		}
		f := &codec.AMRFrame{}
		if ft >= 0 {
			f.FT = uint8(ft)
		}
		if cmr >= 0 {
			f.CodecModeRequest = true
			f.CMR = uint8(cmr)
		}
		req.AMR = f
	}
	return req, nil
}

func newEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode one block into burst bits",
		Example: `  bts-codec encode --channel xcch --hex 0301...
  bts-codec encode --channel rach --hex 5a --bsic 12 --format bits`,
		RunE: runEncode,
	}
	requestFlags(cmd)
	cmd.Flags().String("hex", "", "Block payload as hex")
	cmd.Flags().String("format", formatText, "Output format: text, yaml or bits")
	_ = cmd.MarkFlagRequired("hex")
	return cmd
}

// encodeOutput is the printable form of an encoded block: one string of
// 0/1 per burst.
type encodeOutput struct {
	ID      string         `yaml:"id"`
	Channel engine.Channel `yaml:"channel"`
	Scheme  codec.Scheme   `yaml:"scheme"`
	Bursts  []string       `yaml:"bursts"`
}

func burstStrings(b []byte, s codec.Scheme) []string {
	n := len(b)
	if info, ok := s.Info(); ok && info.BurstBits > 0 && len(b)%info.BurstBits == 0 {
		n = info.BurstBits
	}
	var out []string
	for i := 0; i < len(b); i += n {
		var sb strings.Builder
		for _, v := range b[i:min(i+n, len(b))] {
			sb.WriteByte('0' + v)
		}
		out = append(out, sb.String())
	}
	return out
}

func runEncode(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}
	hexData, _ := cmd.Flags().GetString("hex")
	req.Data, err = hex.DecodeString(strings.TrimSpace(hexData))
	if err != nil {
		return fmt.Errorf("--hex: %w", err)
	}
	format, _ := cmd.Flags().GetString("format")

	eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Stop()

	res, err := eng.Encode(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := encodeOutput{ID: res.ID, Channel: res.Channel, Scheme: res.Scheme, Bursts: burstStrings(res.Bits, res.Scheme)}

	w := cmd.OutOrStdout()
	switch format {
	case formatYAML:
		return writeYAML(w, out)
	case formatBits:
		for _, b := range out.Bursts {
			fmt.Fprintln(w, b)
		}
		return nil
	case formatText:
		fmt.Fprintf(w, "id:      %s\nchannel: %s\nscheme:  %s\n", out.ID, out.Channel, out.Scheme)
		for i, b := range out.Bursts {
			fmt.Fprintf(w, "burst %d: %s\n", i, b)
		}
		return nil
	}
	return fmt.Errorf("%q: %w", format, errBadFormat)
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode burst bits back into a block",
		Long: `Decode reads the received bursts from a file ("-" for stdin). Values are
soft bits in -127..127, negative meaning one, separated by spaces, commas or
newlines. With --hard the file holds 0/1 bits instead, either as separate
values or as runs such as the output of "encode --format bits".`,
		RunE: runDecode,
	}
	requestFlags(cmd)
	cmd.Flags().String("bursts-file", "", "File with the received bursts, - for stdin")
	cmd.Flags().Bool("hard", false, "Bursts file holds hard 0/1 bits")
	cmd.Flags().Bool("odd", false, "TCH/H block starts on the odd boundary")
	cmd.Flags().String("format", formatText, "Output format: text or yaml")
	_ = cmd.MarkFlagRequired("bursts-file")
	return cmd
}

// parseBursts reads soft or hard burst values.
func parseBursts(r io.Reader, hard bool) ([]int8, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fields := strings.FieldsFunc(string(raw), func(c rune) bool {
		return unicode.IsSpace(c) || c == ','
	})

	if hard {
		var hb []byte
		for _, f := range fields {
			for _, c := range f {
				if c != '0' && c != '1' {
					return nil, fmt.Errorf("hard bit %q is not 0 or 1", f)
				}
				hb = append(hb, byte(c-'0'))
			}
		}
		return bits.ToSoft(hb), nil
	}

	out := make([]int8, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("soft bit %q: %w", f, err)
		}
		out = append(out, int8(v))
	}
	return out, nil
}

// decodeOutput is the printable form of a decode result.
type decodeOutput struct {
	ID       string          `yaml:"id"`
	Channel  engine.Channel  `yaml:"channel"`
	Scheme   codec.Scheme    `yaml:"scheme"`
	OK       bool            `yaml:"ok"`
	Data     string          `yaml:"data,omitempty"`
	USF      *uint8          `yaml:"usf,omitempty"`
	FACCH    bool            `yaml:"facch"`
	InBandID int             `yaml:"in_band_id"`
	AMR      *codec.AMRFrame `yaml:"amr,omitempty"`
	Header   *codec.Stats    `yaml:"header,omitempty"`
	Stats    codec.Stats     `yaml:"stats"`
	BER      float64         `yaml:"ber"`
	Error    string          `yaml:"error,omitempty"`
}

func runDecode(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("bursts-file")
	hard, _ := cmd.Flags().GetBool("hard")
	req.Odd, _ = cmd.Flags().GetBool("odd")
	format, _ := cmd.Flags().GetString("format")
	if format != formatText && format != formatYAML {
		return fmt.Errorf("%q: %w", format, errBadFormat)
	}

	in := cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	if req.Bursts, err = parseBursts(in, hard); err != nil {
		return err
	}

	eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Stop()

	res, decErr := eng.Decode(cmd.Context(), req)
	if res == nil {
		return decErr
	}
	out := decodeOutput{
		ID: res.ID, Channel: res.Channel, Scheme: res.Scheme, OK: res.OK(),
		Data: hex.EncodeToString(res.Data), USF: res.USF, FACCH: res.FACCH,
		InBandID: res.InBandID, AMR: res.AMR, Header: res.Header,
		Stats: res.Stats, BER: res.BER(), Error: res.Error,
	}

	w := cmd.OutOrStdout()
	if format == formatYAML {
		if err := writeYAML(w, out); err != nil {
			return err
		}
		return decErr
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", out.ID)
	fmt.Fprintf(tw, "channel:\t%s\n", out.Channel)
	fmt.Fprintf(tw, "scheme:\t%s\n", out.Scheme)
	fmt.Fprintf(tw, "ok:\t%t\n", out.OK)
	if out.Data != "" {
		fmt.Fprintf(tw, "data:\t%s\n", out.Data)
	}
	if out.USF != nil {
		fmt.Fprintf(tw, "usf:\t%d\n", *out.USF)
	}
	if out.FACCH {
		fmt.Fprintf(tw, "facch:\t%t\n", out.FACCH)
	}
	if out.InBandID >= 0 {
		fmt.Fprintf(tw, "in-band id:\t%d\n", out.InBandID)
	}
	fmt.Fprintf(tw, "bit errors:\t%d/%d (%.4f)\n", out.Stats.NErrors, out.Stats.NBitsTotal, out.BER)
	if err := tw.Flush(); err != nil {
		return err
	}
	return decErr
}

func newSelfTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run every scheme through a simulated noisy channel",
		RunE:  runSelfTest,
	}
	cmd.Flags().Float64("snr", 0, "Channel Es/N0 in dB (default from config)")
	cmd.Flags().Int("blocks", 0, "Blocks per scheme (default from config)")
	cmd.Flags().Uint64("seed", 0, "Noise seed (default from config)")
	cmd.Flags().StringSlice("schemes", nil, "Schemes to test, all when empty")
	cmd.Flags().String("format", formatText, "Output format: text or yaml")
	return cmd
}

func runSelfTest(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != formatText && format != formatYAML {
		return fmt.Errorf("%q: %w", format, errBadFormat)
	}

	opts := engine.SelfTestOptions{SNRdB: cfg.Simulation.SNRdB, Blocks: cfg.Simulation.Blocks, Seed: cfg.Simulation.Seed}
	if cmd.Flags().Changed("snr") {
		opts.SNRdB, _ = cmd.Flags().GetFloat64("snr")
	}
	if cmd.Flags().Changed("blocks") {
		opts.Blocks, _ = cmd.Flags().GetInt("blocks")
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	names, _ := cmd.Flags().GetStringSlice("schemes")
	for _, n := range names {
		s, err := codec.ParseScheme(n)
		if err != nil {
			return err
		}
		opts.Schemes = append(opts.Schemes, s)
	}

	eng, err := newEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Stop()

	report, err := eng.SelfTest(cmd.Context(), opts)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format == formatYAML {
		out, err := report.YAML()
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	fmt.Fprintf(w, "snr %.1f dB, %d blocks per scheme, seed %d, %s\n\n",
		report.SNRdB, report.Blocks, report.Seed, report.Duration.Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SCHEME\tPASSED\tCRC FAIL\tRAW BER\tMEAN BER\tSTD BER\t")
	for _, s := range report.Schemes {
		fmt.Fprintf(tw, "%s\t%d/%d\t%d\t%.4f\t%.4f\t%.4f\t", s.Scheme, s.Passed, s.Blocks, s.CRCFailures, s.RawBER, s.MeanBER, s.StdBER)
		if s.Error != "" {
			fmt.Fprintf(tw, " %s", s.Error)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d failed blocks\n", report.Failed())
	return nil
}

func newSchemesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemes",
		Short: "List the supported coding schemes",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			w := cmd.OutOrStdout()
			switch format {
			case formatYAML:
				return writeYAML(w, codec.Schemes())
			case formatText:
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tOCTETS\tBURSTS\tBURST BITS\tCRC BITS\tCODED BITS")
				for _, s := range codec.Schemes() {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Name, s.Octets, s.Bursts, s.BurstBits, s.CRCBits, s.CodedBits)
				}
				return tw.Flush()
			}
			return fmt.Errorf("%q: %w", format, errBadFormat)
		},
	}
	cmd.Flags().String("format", formatText, "Output format: text or yaml")
	return cmd
}
