package outcomes

import (
	"context"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var tokenRe = regexp.MustCompile(`[^\s,;]+`)

// MaxLogBytes bounds the size of an outcome log read from any source.
const MaxLogBytes = 8 << 20

var ErrTooLarge = errors.New("outcome log too large")

// ReadLog reads r up to MaxLogBytes.
func ReadLog(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxLogBytes+1))
	if err != nil {
		return "", err
	}
	if len(b) > MaxLogBytes {
		return "", errors.Wrapf(ErrTooLarge, "limit %d bytes", MaxLogBytes)
	}
	return string(b), nil
}

// Fetcher retrieves the text of an outcome log.
type Fetcher interface {
	Fetch(ctx context.Context, src string) (string, error)
}

type HTTPFetcher struct {
	Client *http.Client
}

func (h HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 12 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("http_status_" + resp.Status)
	}
	return ReadLog(resp.Body)
}

type FileFetcher struct{}

func (FileFetcher) Fetch(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ReadLog(f)
}

// ForSource picks the HTTP fetcher for http(s) URLs and reads files otherwise.
func ForSource(src string) Fetcher {
	l := strings.ToLower(src)
	if strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") {
		return HTTPFetcher{}
	}
	return FileFetcher{}
}

func outcome(tok string) (bool, bool) {
	switch strings.ToLower(tok) {
	case "pass", "passed", "ok", "success", "true", "1", "+":
		return true, true
	case "fail", "failed", "failure", "false", "0", "-", "x":
		return false, true
	}
	return false, false
}

// Parse reads test outcomes in order. Tokens are separated by whitespace,
// commas or semicolons and a # starts a comment that runs to the end of the line.
func Parse(text string) ([]bool, error) {
	out := []bool{}
	for i, line := range strings.Split(text, "\n") {
		if j := strings.IndexByte(line, '#'); j >= 0 {
			line = line[:j]
		}
		for _, tok := range tokenRe.FindAllString(line, -1) {
			ok, known := outcome(tok)
			if !known {
				return nil, errors.Errorf("line %d: unknown outcome %q", i+1, tok)
			}
			out = append(out, ok)
		}
	}
	return out, nil
}

// Count returns the number of successes among outcomes.
func Count(outcomes []bool) int {
	k := 0
	for _, ok := range outcomes {
		if ok {
			k++
		}
	}
	return k
}
