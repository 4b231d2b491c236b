// Package telephony wraps the carrier's voice REST API: placing calls,
// hanging up, and rendering the carrier's call-control markup (XML) for
// IVR/hold/record/stream scripts. The carrier itself is an external
// collaborator reached over plain HTTP — no carrier SDK is vendored.
package telephony

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DeepNandre/friendlyy/internal/logger"
)

// Driver places and controls calls through the carrier's REST API.
type Driver struct {
	accountSID string
	authToken  string
	fromNumber string
	client     *http.Client
	baseURL    string
}

// New creates a Driver. An empty accountSID runs in demo mode: Place
// returns a synthetic carrier SID without making a network call.
func New(accountSID, authToken, fromNumber string) *Driver {
	return &Driver{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    "https://api.twilio.com/2010-04-01",
		client: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// DemoMode reports whether the driver has no carrier credentials and is
// simulating calls locally.
func (d *Driver) DemoMode() bool {
	return d.accountSID == ""
}

// PlaceOptions configures an outbound call placement.
type PlaceOptions struct {
	Timeout time.Duration
	Record  bool
	AMD     bool
}

// Place originates a call to "to", driven by the call-control markup at
// callControlURL, with carrier status callbacks delivered to
// statusCallbackURL. Returns the carrier's call SID.
func (d *Driver) Place(ctx context.Context, to, callControlURL, statusCallbackURL string, opts PlaceOptions) (string, error) {
	if d.DemoMode() {
		sid := "DEMO" + fmt.Sprint(time.Now().UnixNano())
		logger.Info("demo mode: simulating call placement", "to", to, "carrier_sid", sid)
		return sid, nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", d.fromNumber)
	form.Set("Url", callControlURL)
	form.Set("StatusCallback", statusCallbackURL)
	form.Set("StatusCallbackEvent", "initiated ringing answered completed")
	if opts.Timeout > 0 {
		form.Set("Timeout", strconv.Itoa(int(opts.Timeout.Seconds())))
	}
	if opts.Record {
		form.Set("Record", "true")
	}
	if opts.AMD {
		form.Set("MachineDetection", "DetectMessageEnd")
		form.Set("AsyncAmd", "true")
	}

	var resp struct {
		SID string `json:"sid"`
	}
	if err := d.post(ctx, fmt.Sprintf("/Accounts/%s/Calls.json", d.accountSID), form, &resp); err != nil {
		return "", fmt.Errorf("place call: %w", err)
	}
	return resp.SID, nil
}

// Hangup terminates an in-progress call.
func (d *Driver) Hangup(ctx context.Context, carrierSID string) error {
	if d.DemoMode() {
		logger.Info("demo mode: simulating hangup", "carrier_sid", carrierSID)
		return nil
	}

	form := url.Values{}
	form.Set("Status", "completed")

	var resp map[string]any
	path := fmt.Sprintf("/Accounts/%s/Calls/%s.json", d.accountSID, carrierSID)
	if err := d.post(ctx, path, form, &resp); err != nil {
		return fmt.Errorf("hangup: %w", err)
	}
	return nil
}

func (d *Driver) post(ctx context.Context, path string, form url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Body = httpBody(form.Encode())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(d.accountSID, d.authToken)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("carrier returned status %d", resp.StatusCode)
	}
	return decodeJSON(resp.Body, dest)
}

// --- Call-control markup rendering ---

// PlaybackScript renders markup for "play audio, record response, hang up"
// — used for Blitz's one-shot business calls. An empty audioURL omits the
// Play element, so the call goes straight to recording.
func PlaybackScript(audioURL, recordActionURL string) string {
	play := ""
	if audioURL != "" {
		play = fmt.Sprintf("\n  <Play>%s</Play>", audioURL)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>%s
  <Pause length="1"/>
  <Record maxLength="30" trimSilence="true" timeout="5" action="%s" playBeep="false"/>
  <Say>Thank you, goodbye.</Say>
  <Hangup/>
</Response>`, play, recordActionURL)
}

// ConversationScript renders markup that opens a bidirectional media
// stream to the Media Bridge's WebSocket, keeping the call alive for up to
// maxSeconds (capped at 180 per spec).
func ConversationScript(mediaStreamURL string, maxSeconds int) string {
	if maxSeconds > 180 {
		maxSeconds = 180
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Connect>
    <Stream url="%s"/>
  </Connect>
  <Pause length="%d"/>
</Response>`, mediaStreamURL, maxSeconds)
}

// GatherScript renders a speech-gather with a long timeout that posts
// recognized speech to actionURL, redirecting to redirectURL on timeout —
// used for the Queue agent's initial IVR handler.
func GatherScript(actionURL, redirectURL string, timeoutSeconds int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Gather input="speech" timeout="%d" action="%s" method="POST"/>
  <Redirect method="POST">%s</Redirect>
</Response>`, timeoutSeconds, actionURL, redirectURL)
}

// DTMFScript sends DTMF tones then re-gathers, per the Queue IVR handler's
// digit-navigation step.
func DTMFScript(digits, regatherURL string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Play digits="%s"/>
  <Pause length="2"/>
  <Redirect method="POST">%s</Redirect>
</Response>`, digits, regatherURL)
}

// HoldLoopScript renders a tight 20-second speech-gather posting to
// humanCheckURL, re-entering itself on timeout.
func HoldLoopScript(humanCheckURL, selfURL string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Gather input="speech" timeout="20" action="%s" method="POST"/>
  <Redirect method="POST">%s</Redirect>
</Response>`, humanCheckURL, selfURL)
}

// HumanDetectedScript plays a short message then hangs up, buying time for
// the user to dial back in.
func HumanDetectedScript() string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say>Please hold, connecting you now.</Say>
  <Hangup/>
</Response>`
}
