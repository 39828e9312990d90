// Command pairctl walks a device through the pairing flow against a running
// Quill API server: it starts a pairing request, prints the browser URL for
// the user to visit, polls until the request reaches a terminal state, and
// on success exchanges the bearer credential for a fresh API key.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	pollInterval    = 3 * time.Second
	maxPollAttempts = 200
)

type pairClient struct {
	baseURL string
	http    *http.Client
}

type startResponse struct {
	PairingToken string `json:"pairingToken"`
	BrowserURL   string `json:"browserUrl"`
	ExpiresIn    int    `json:"expiresIn"`
}

type statusResponse struct {
	Status           string `json:"status"`
	OTPRequired      bool   `json:"otpRequired"`
	BearerCredential string `json:"bearerCredential,omitempty"`
	User             *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user,omitempty"`
}

type keyResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// keyEnvelope matches POST /v1/keys, which nests the minted key under apiKey.
type keyEnvelope struct {
	APIKey keyResponse `json:"apiKey"`
}

func main() {
	baseURL := flag.String("server", "http://localhost:8080", "Quill API server base URL")
	keyName := flag.String("key-name", "", "name for the API key minted after pairing (default: pairctl-<hostname>)")
	flag.Parse()

	name := *keyName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "device"
		}
		name = "pairctl-" + hostname
	}

	client := &pairClient{
		baseURL: *baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}

	start, err := client.startPairing()
	if err != nil {
		fatalf("start pairing: %v", err)
	}

	fmt.Println("To pair this device, open the following URL in your browser:")
	fmt.Println()
	fmt.Printf("    %s\n", start.BrowserURL)
	fmt.Println()
	fmt.Printf("Waiting for approval (expires in %ds)...\n", start.ExpiresIn)

	status, err := client.waitForCompletion(start.PairingToken)
	if err != nil {
		fatalf("%v", err)
	}

	if status.User != nil {
		fmt.Printf("Paired as %s <%s>\n", status.User.Name, status.User.Email)
	} else {
		fmt.Println("Paired.")
	}

	key, err := client.generateKey(status.BearerCredential, name)
	if err != nil {
		fatalf("generate api key: %v", err)
	}

	fmt.Println()
	fmt.Printf("API key %q created. Store it now; it will not be shown again:\n", name)
	fmt.Println()
	fmt.Printf("    %s\n", key.Key)
}

func (c *pairClient) startPairing() (*startResponse, error) {
	var out startResponse
	if err := c.post("/v1/pairing/start", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *pairClient) waitForCompletion(token string) (*statusResponse, error) {
	for attempt := 0; attempt < maxPollAttempts; attempt++ {
		time.Sleep(pollInterval)

		var status statusResponse
		url := fmt.Sprintf("%s/v1/pairing/status?token=%s", c.baseURL, token)
		resp, err := c.http.Get(url)
		if err != nil {
			return nil, fmt.Errorf("poll status: %w", err)
		}
		err = decodeEnvelope(resp, &status)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("poll status: %w", err)
		}

		switch status.Status {
		case "completed":
			return &status, nil
		case "expired":
			return nil, fmt.Errorf("pairing request expired before approval")
		case "failed":
			return nil, fmt.Errorf("pairing failed (too many incorrect codes)")
		}
	}
	return nil, fmt.Errorf("gave up waiting for approval")
}

func (c *pairClient) generateKey(bearer, name string) (*keyResponse, error) {
	var out keyEnvelope
	if err := c.post("/v1/keys", bearer, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	if out.APIKey.Key == "" {
		return nil, fmt.Errorf("server response did not include the generated key")
	}
	return &out.APIKey, nil
}

func (c *pairClient) post(path, bearer string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

// decodeEnvelope unwraps the server's {"success": ..., ...} envelope,
// flattening the remaining fields into out.
func decodeEnvelope(resp *http.Response, out any) error {
	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if v, ok := payload["success"]; ok {
		_ = json.Unmarshal(v, &envelope.Success)
	}
	if v, ok := payload["error"]; ok {
		_ = json.Unmarshal(v, &envelope.Error)
	}
	if resp.StatusCode >= 400 || !envelope.Success {
		if envelope.Error != "" {
			return fmt.Errorf("server: %s", envelope.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	merged, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, out)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
