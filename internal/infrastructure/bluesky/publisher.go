package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"PopWatcher/internal/config"
	"PopWatcher/internal/domain"
	"PopWatcher/internal/ports"
)

const (
	maxImagesPerPost = 4
	postCollection   = "app.bsky.feed.post"
)

// Publisher posts announcements to Bluesky over the XRPC HTTP API using an
// app password session.
type Publisher struct {
	host        string
	handle      string
	appPassword string
	client      *http.Client

	mu      sync.Mutex
	session *session
}

type session struct {
	AccessJWT string `json:"accessJwt"`
	DID       string `json:"did"`
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher builds a client from configuration.
func NewPublisher(cfg config.BlueskyConfig) *Publisher {
	return &Publisher{
		host:        strings.TrimSuffix(cfg.Host, "/"),
		handle:      cfg.Handle,
		appPassword: cfg.AppPassword,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Announce uploads the post images, creates the feed post record, and
// returns the record URI. A stale session is renewed once.
func (p *Publisher) Announce(ctx context.Context, post domain.Post) (string, error) {
	if p.handle == "" || p.appPassword == "" {
		return "", fmt.Errorf("bluesky publisher misconfigured")
	}

	sess, err := p.ensureSession(ctx)
	if err != nil {
		return "", fmt.Errorf("establish session: %w", err)
	}

	record := map[string]any{
		"$type":     postCollection,
		"text":      post.Text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}

	if facets := buildFacets(post.Text); len(facets) > 0 {
		record["facets"] = facets
	}

	if embed, err := p.buildImageEmbed(ctx, sess, post.Images); err != nil {
		return "", fmt.Errorf("embed images: %w", err)
	} else if embed != nil {
		record["embed"] = embed
	}

	payload := map[string]any{
		"repo":       sess.DID,
		"collection": postCollection,
		"record":     record,
	}

	var created struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := p.xrpc(ctx, sess, "com.atproto.repo.createRecord", payload, &created); err != nil {
		return "", fmt.Errorf("create record: %w", err)
	}

	return created.URI, nil
}

func (p *Publisher) buildImageEmbed(ctx context.Context, sess *session, images []domain.PostImage) (map[string]any, error) {
	if len(images) == 0 {
		return nil, nil
	}
	if len(images) > maxImagesPerPost {
		images = images[:maxImagesPerPost]
	}

	embeds := make([]map[string]any, 0, len(images))
	for _, img := range images {
		blob, err := p.uploadBlob(ctx, sess, img.Bytes)
		if err != nil {
			return nil, fmt.Errorf("upload blob: %w", err)
		}
		embeds = append(embeds, map[string]any{
			"alt":   img.Alt,
			"image": blob,
		})
	}

	return map[string]any{
		"$type":  "app.bsky.embed.images",
		"images": embeds,
	}, nil
}

// uploadBlob pushes image bytes and returns the opaque blob reference as the
// server produced it.
func (p *Publisher) uploadBlob(ctx context.Context, sess *session, data []byte) (json.RawMessage, error) {
	endpoint := p.host + "/xrpc/com.atproto.repo.uploadBlob"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessJWT)
	req.Header.Set("Content-Type", http.DetectContentType(data))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bluesky error %s: %s", resp.Status, readErrorBody(resp.Body))
	}

	var uploaded struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	return uploaded.Blob, nil
}

func (p *Publisher) ensureSession(ctx context.Context) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		return p.session, nil
	}
	return p.login(ctx)
}

// login must be called with p.mu held.
func (p *Publisher) login(ctx context.Context) (*session, error) {
	body, err := json.Marshal(map[string]string{
		"identifier": p.handle,
		"password":   p.appPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}

	endpoint := p.host + "/xrpc/com.atproto.server.createSession"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bluesky login %s: %s", resp.Status, readErrorBody(resp.Body))
	}

	var sess session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	p.session = &sess
	return p.session, nil
}

// xrpc posts a JSON procedure call. On an expired session it re-logs in once
// and retries the call.
func (p *Publisher) xrpc(ctx context.Context, sess *session, method string, payload, v any) error {
	status, err := p.call(ctx, sess, method, payload, v)
	if status != http.StatusUnauthorized {
		return err
	}

	p.mu.Lock()
	p.session = nil
	sess, loginErr := p.login(ctx)
	p.mu.Unlock()
	if loginErr != nil {
		return fmt.Errorf("renew session: %w", loginErr)
	}

	_, err = p.call(ctx, sess, method, payload, v)
	return err
}

func (p *Publisher) call(ctx context.Context, sess *session, method string, payload, v any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := p.host + "/xrpc/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessJWT)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("bluesky error %s: %s", resp.Status, readErrorBody(resp.Body))
	}

	if v == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func readErrorBody(r io.Reader) string {
	payload, _ := io.ReadAll(io.LimitReader(r, 1024))
	return strings.TrimSpace(string(payload))
}
