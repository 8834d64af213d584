package vlc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Driver speaks VLC's HTTP RC interface.
type Driver struct {
	baseURL  string
	http     *http.Client
	username string
	password string
}

// Status is the subset of status.json the widget reads.
type Status struct {
	State       string      `json:"state"`
	Time        float64     `json:"time"`
	Length      float64     `json:"length"`
	Volume      int         `json:"volume"`
	Information information `json:"information"`
}

type information struct {
	Category struct {
		Meta struct {
			Title    string `json:"title"`
			Filename string `json:"filename"`
		} `json:"meta"`
	} `json:"category"`
}

// Title returns the media title, falling back to the file name.
func (s Status) Title() string {
	meta := s.Information.Category.Meta
	if title := strings.TrimSpace(meta.Title); title != "" {
		return title
	}
	return strings.TrimSpace(meta.Filename)
}

// NewDriver creates a VLC HTTP RC driver.
func NewDriver(baseURL string, username string, password string, timeout time.Duration) (*Driver, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("base_url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Driver{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		username: username,
		password: password,
	}, nil
}

// Open replaces the playlist with input and starts it.
func (d *Driver) Open(input string) error {
	if input == "" {
		return errors.New("input required")
	}
	_, _ = d.request(url.Values{"command": []string{"pl_stop"}})
	_, _ = d.request(url.Values{"command": []string{"pl_empty"}})
	_, err := d.request(url.Values{
		"command": []string{"in_play"},
		"input":   []string{input},
	})
	return err
}

func (d *Driver) Play() error {
	_, err := d.request(url.Values{"command": []string{"pl_play"}})
	return err
}

// Pause pauses without toggling; pl_pause would resume a paused input.
func (d *Driver) Pause() error {
	_, err := d.request(url.Values{"command": []string{"pl_forcepause"}})
	return err
}

// Seek moves to an absolute position in whole seconds.
func (d *Driver) Seek(seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	_, err := d.request(url.Values{
		"command": []string{"seek"},
		"val":     []string{strconv.FormatInt(int64(seconds), 10)},
	})
	return err
}

// SetVolume maps a 0..100 level onto VLC's 0..256 scale.
func (d *Driver) SetVolume(percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	level := (percent*256 + 50) / 100
	_, err := d.request(url.Values{
		"command": []string{"volume"},
		"val":     []string{strconv.Itoa(level)},
	})
	return err
}

func (d *Driver) Status() (Status, error) {
	payload, err := d.request(nil)
	if err != nil {
		return Status{}, err
	}
	var status Status
	if err := json.Unmarshal(payload, &status); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

func (d *Driver) request(values url.Values) ([]byte, error) {
	endpoint := d.baseURL + "/requests/status.json"
	if len(values) > 0 {
		endpoint = endpoint + "?" + values.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if d.username != "" || d.password != "" {
		req.SetBasicAuth(d.username, d.password)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("vlc error: %s", msg)
	}
	return body, nil
}
