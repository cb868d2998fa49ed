package docqa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"invoice-scan/pkg/config"
)

const defaultHFBaseURL = "https://api-inference.huggingface.co/models/"

// huggingFace talks to a Hugging Face style inference endpoint serving the
// document-question-answering task.
type huggingFace struct {
	model    string
	endpoint string
	token    string
	topK     int
	client   *http.Client
}

type hfRequest struct {
	Inputs     hfInputs     `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfInputs struct {
	Image    string `json:"image"`
	Question string `json:"question"`
}

type hfParameters struct {
	TopK int `json:"top_k"`
}

type hfAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

type hfError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}

func newHuggingFace(ctx context.Context, cfg config.DocQAConfig, client *http.Client) (*huggingFace, error) {
	if cfg.Model == "" && cfg.Endpoint == "" {
		return nil, errors.New("huggingface: DOCQA_MODEL or DOCQA_ENDPOINT is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultHFBaseURL + cfg.Model
	}
	model := cfg.Model
	if model == "" {
		model = endpoint
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 1
	}
	hf := &huggingFace{
		model:    model,
		endpoint: endpoint,
		token:    cfg.Token,
		topK:     topK,
		client:   client,
	}
	if cfg.HealthURL != "" {
		if err := hf.probe(ctx, cfg.HealthURL); err != nil {
			return nil, err
		}
	}
	return hf, nil
}

func (h *huggingFace) Name() string { return h.model }

func (h *huggingFace) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *huggingFace) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("huggingface: build probe: %w", err)
	}
	h.authorize(req)
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("huggingface: probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("huggingface: probe status %d", resp.StatusCode)
	}
	return nil
}

func (h *huggingFace) authorize(req *http.Request) {
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
}

func (h *huggingFace) Open(_ context.Context, page Page) (Session, error) {
	return &hfSession{hf: h, image: base64.StdEncoding.EncodeToString(page.Data)}, nil
}

type hfSession struct {
	hf    *huggingFace
	image string
}

func (s *hfSession) Ask(ctx context.Context, question string) ([]Candidate, error) {
	body, err := json.Marshal(hfRequest{
		Inputs:     hfInputs{Image: s.image, Question: question},
		Parameters: hfParameters{TopK: s.hf.topK},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.hf.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	s.hf.authorize(req)

	resp, err := s.hf.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		var he hfError
		if json.Unmarshal(raw, &he) == nil && he.Error != "" {
			return nil, fmt.Errorf("inference status %d: %s", resp.StatusCode, he.Error)
		}
		return nil, fmt.Errorf("inference status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return decodeHFAnswers(raw)
}

// decodeHFAnswers accepts either a list of answers or a single answer object.
func decodeHFAnswers(raw []byte) ([]Candidate, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var list []hfAnswer
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	} else {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		if msg, ok := probe["error"]; ok {
			return nil, fmt.Errorf("inference error: %s", msg)
		}
		var one hfAnswer
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		list = []hfAnswer{one}
	}

	out := make([]Candidate, 0, len(list))
	for _, a := range list {
		out = append(out, Candidate{Answer: a.Answer, Score: a.Score})
	}
	return out, nil
}
