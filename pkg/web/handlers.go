package web

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dbehnke/bts-codec/pkg/bits"
	"github.com/dbehnke/bts-codec/pkg/codec"
	"github.com/dbehnke/bts-codec/pkg/engine"
	"github.com/dbehnke/bts-codec/pkg/logger"
)

const (
	maxBody      = 1 << 20
	historyLimit = 100
	historyMax   = 1000
)

// encodeRequest is the body of POST /api/encode. Data is hex.
type encodeRequest struct {
	Channel string          `json:"channel"`
	Data    string          `json:"data"`
	BSIC    *uint8          `json:"bsic,omitempty"`
	AMR     *codec.AMRFrame `json:"amr,omitempty"`
}

// decodeRequest is the body of POST /api/decode. Bursts are soft bits in
// -127..127 (negative is a one) unless Hard is set, then 0/1 values.
type decodeRequest struct {
	Channel string          `json:"channel"`
	Bursts  []int           `json:"bursts"`
	Hard    bool            `json:"hard,omitempty"`
	BSIC    *uint8          `json:"bsic,omitempty"`
	Odd     bool            `json:"odd,omitempty"`
	AMR     *codec.AMRFrame `json:"amr,omitempty"`
}

type selfTestRequest struct {
	SNRdB   *float64 `json:"snr_db,omitempty"`
	Blocks  int      `json:"blocks,omitempty"`
	Seed    *uint64  `json:"seed,omitempty"`
	Schemes []string `json:"schemes,omitempty"`
}

type encodeResponse struct {
	ID      string         `json:"id"`
	Channel engine.Channel `json:"channel"`
	Scheme  codec.Scheme   `json:"scheme"`
	Bits    []int          `json:"bits"`
}

type decodeResponse struct {
	ID       string          `json:"id"`
	Channel  engine.Channel  `json:"channel"`
	Scheme   codec.Scheme    `json:"scheme"`
	OK       bool            `json:"ok"`
	Data     string          `json:"data,omitempty"`
	USF      *uint8          `json:"usf,omitempty"`
	FACCH    bool            `json:"facch"`
	InBandID int             `json:"in_band_id"`
	AMR      *codec.AMRFrame `json:"amr,omitempty"`
	Header   *codec.Stats    `json:"header,omitempty"`
	Stats    codec.Stats     `json:"stats"`
	BER      float64         `json:"ber"`
	Error    string          `json:"error,omitempty"`
}

type decodeEventResponse struct {
	Result    decodeResponse `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

func toDecodeResponse(r *engine.DecodeResult) decodeResponse {
	return decodeResponse{
		ID:       r.ID,
		Channel:  r.Channel,
		Scheme:   r.Scheme,
		OK:       r.OK(),
		Data:     hex.EncodeToString(r.Data),
		USF:      r.USF,
		FACCH:    r.FACCH,
		InBandID: r.InBandID,
		AMR:      r.AMR,
		Header:   r.Header,
		Stats:    r.Stats,
		BER:      r.BER(),
		Error:    r.Error,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode JSON response", logger.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Settings()
	modes := func(c codec.AMRConfig) []string {
		out := make([]string, len(c.Codecs))
		for i, m := range c.Codecs {
			out[i] = m.String()
		}
		return out
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":   s.version,
		"buildTime": s.buildTime,
		"bsic":      st.BSIC,
		"tch_f":     st.FullMode.String(),
		"tch_h":     st.HalfMode.String(),
		"amr_full":  modes(st.FullAMR),
		"amr_half":  modes(st.HalfAMR),
		"cmr":       st.CMR,
		"net_order": st.NetOrder,
		"history":   s.history != nil,
	})
}

func (s *Server) handleSchemes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"schemes": codec.Schemes(),
	})
}

func (s *Server) stats() map[string]interface{} {
	st := s.engine.Stats()
	return map[string]interface{}{
		"uptime":     int(time.Since(s.startTime).Seconds()),
		"engine":     st,
		"mean_ber":   st.MeanBER(),
		"ws_clients": s.websocketHub.Clients(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats())
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	ch, err := engine.ParseChannel(req.Channel)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := hex.DecodeString(strings.TrimSpace(req.Data))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("data is not hex: %w", err))
		return
	}

	res, err := s.engine.Encode(r.Context(), engine.Request{Channel: ch, Data: data, BSIC: req.BSIC, AMR: req.AMR})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	out := make([]int, len(res.Bits))
	for i, b := range res.Bits {
		out[i] = int(b)
	}
	s.writeJSON(w, http.StatusOK, encodeResponse{ID: res.ID, Channel: res.Channel, Scheme: res.Scheme, Bits: out})
}

// softBursts converts request burst values to soft bits.
func softBursts(vals []int, hard bool) ([]int8, error) {
	if hard {
		hb := make([]byte, len(vals))
		for i, v := range vals {
			if v != 0 && v != 1 {
				return nil, fmt.Errorf("hard bit %d is %d", i, v)
			}
			hb[i] = byte(v)
		}
		return bits.ToSoft(hb), nil
	}
	out := make([]int8, len(vals))
	for i, v := range vals {
		if v < math.MinInt8 || v > math.MaxInt8 {
			return nil, fmt.Errorf("soft bit %d out of range: %d", i, v)
		}
		out[i] = int8(v)
	}
	return out, nil
}

// decodeFailed reports a block that was received but did not decode, as
// opposed to a malformed request.
func decodeFailed(err error) bool {
	return errors.Is(err, codec.ErrCRC) || errors.Is(err, codec.ErrHeaderCRC) ||
		errors.Is(err, codec.ErrModeOutOfRange) || errors.Is(err, codec.ErrUSFOutOfRange)
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	ch, err := engine.ParseChannel(req.Channel)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	soft, err := softBursts(req.Bursts, req.Hard)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.engine.Decode(r.Context(), engine.Request{
		Channel: ch, Bursts: soft, BSIC: req.BSIC, Odd: req.Odd, AMR: req.AMR,
	})
	if err != nil && (res == nil || !decodeFailed(err)) {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDecodeResponse(res))
}

func (s *Server) handleSelfTest(w http.ResponseWriter, r *http.Request) {
	req := selfTestRequest{}
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	sim := s.config.Simulation
	opts := engine.SelfTestOptions{SNRdB: sim.SNRdB, Blocks: sim.Blocks, Seed: sim.Seed}
	if req.SNRdB != nil {
		opts.SNRdB = *req.SNRdB
	}
	if req.Blocks > 0 {
		opts.Blocks = req.Blocks
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	for _, n := range req.Schemes {
		sc, err := codec.ParseScheme(n)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		opts.Schemes = append(opts.Schemes, sc)
	}

	report, err := s.engine.SelfTest(r.Context(), opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("history disabled"))
		return
	}

	limit := historyLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, historyMax)
		}
	}
	channel := r.URL.Query().Get("channel")
	if channel != "" {
		ch, err := engine.ParseChannel(channel)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		channel = string(ch)
	}

	records, err := s.history.GetRecent(channel, limit)
	if err != nil {
		s.logger.Error("Failed to read history", logger.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("history unavailable"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"decodes": records})
}

func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("history disabled"))
		return
	}

	window := 24 * time.Hour
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("since %q is not a positive duration", v))
			return
		}
		window = d
	}

	summary, err := s.history.Summary(time.Now().Add(-window))
	if err != nil {
		s.logger.Error("Failed to summarise history", logger.Error(err))
		s.writeError(w, http.StatusInternalServerError, errors.New("history unavailable"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"since":   window.String(),
		"schemes": summary,
	})
}
