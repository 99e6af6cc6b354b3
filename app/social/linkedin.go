package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	DefaultLinkedInAPIBase = "https://api.linkedin.com"
	personURNPrefix        = "urn:li:person:"
)

var linkedInHints = map[int]string{
	http.StatusUnauthorized: "regenerate the access token with the w_member_social scope",
	http.StatusForbidden:    "check the app has the openid, profile and w_member_social scopes",
}

// LinkedInPoster publishes UGC posts on behalf of one member.
type LinkedInPoster struct {
	accessToken string
	apiBase     string
	httpClient  *http.Client

	mu        sync.Mutex
	personURN string
}

func NewLinkedInPoster(accessToken, personURN, apiBase string, httpClient *http.Client) *LinkedInPoster {
	if apiBase == "" {
		apiBase = DefaultLinkedInAPIBase
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if !strings.HasPrefix(personURN, personURNPrefix) {
		personURN = ""
	}
	return &LinkedInPoster{
		accessToken: accessToken,
		apiBase:     strings.TrimRight(apiBase, "/"),
		httpClient:  httpClient,
		personURN:   personURN,
	}
}

func (l *LinkedInPoster) Name() string {
	return "linkedin"
}

func (l *LinkedInPoster) Post(ctx context.Context, caption, imagePath string) (string, error) {
	if l.accessToken == "" {
		return "", fmt.Errorf("linkedin: %w: access token is required", ErrMissingCredentials)
	}

	author, err := l.author(ctx)
	if err != nil {
		return "", err
	}

	var asset string
	if imagePath != "" {
		asset, err = l.uploadImage(ctx, author, imagePath)
		if err != nil {
			slog.Warn("Failed to upload image, posting text only", "platform", l.Name(), "error", err)
			asset = ""
		}
	}

	body, err := json.Marshal(newUGCPost(author, caption, asset))
	if err != nil {
		return "", fmt.Errorf("failed to encode post: %w", err)
	}

	req, err := l.newRequest(ctx, http.MethodPost, l.apiBase+"/v2/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		apiErr := newAPIError(l.Name(), resp, linkedInHints)
		if apiErr.Hint == "" && strings.Contains(apiErr.Body, "author") {
			apiErr.Hint = "set LINKEDIN_PERSON_URN to urn:li:person:<sub> from /v2/userinfo"
		}
		return "", apiErr
	}

	id := resp.Header.Get("X-RestLi-Id")
	if id == "" {
		var created struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
			id = created.ID
		}
	}
	if id == "" {
		id = "created"
	}

	slog.Info("Post published", "platform", l.Name(), "post_id", id, "with_image", asset != "")
	return id, nil
}

// author returns the member URN, resolving it once via /v2/userinfo.
func (l *LinkedInPoster) author(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.personURN != "" {
		return l.personURN, nil
	}

	req, err := l.newRequest(ctx, http.MethodGet, l.apiBase+"/v2/userinfo", nil)
	if err != nil {
		return "", err
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := newAPIError(l.Name(), resp, linkedInHints)
		if apiErr.Hint == "" {
			apiErr.Hint = "ensure the token has the openid and profile scopes"
		}
		return "", fmt.Errorf("failed to resolve person URN: %w", apiErr)
	}

	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return "", fmt.Errorf("linkedin: %w: userinfo has no sub, check the profile scope", ErrRejected)
	}

	l.personURN = personURNPrefix + info.Sub
	slog.Info("Resolved LinkedIn person URN", "urn", l.personURN)
	return l.personURN, nil
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism map[string]struct {
			UploadURL string `json:"uploadUrl"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

const uploadMechanismKey = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"

func (l *LinkedInPoster) uploadImage(ctx context.Context, owner, imagePath string) (string, error) {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	register := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   owner,
			"serviceRelationships": []map[string]string{
				{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
			},
		},
	}
	body, err := json.Marshal(register)
	if err != nil {
		return "", fmt.Errorf("failed to encode upload registration: %w", err)
	}

	req, err := l.newRequest(ctx, http.MethodPost, l.apiBase+"/v2/assets?action=registerUpload", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to register upload: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", newAPIError(l.Name(), resp, linkedInHints)
	}

	var reg registerUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return "", fmt.Errorf("failed to decode upload registration: %w", err)
	}
	uploadURL := reg.Value.UploadMechanism[uploadMechanismKey].UploadURL
	if reg.Value.Asset == "" || uploadURL == "" {
		return "", fmt.Errorf("upload registration is missing asset or upload URL")
	}

	put, err := l.newRequest(ctx, http.MethodPut, uploadURL, bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	put.Header.Set("Content-Type", imageContentType(imagePath))

	putResp, err := l.httpClient.Do(put)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer putResp.Body.Close()

	if !isSuccess(putResp.StatusCode) {
		return "", newAPIError(l.Name(), putResp, linkedInHints)
	}

	return reg.Value.Asset, nil
}

func (l *LinkedInPoster) newRequest(ctx context.Context, method, url string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, body)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.accessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
	return req, nil
}

type ugcPost struct {
	Author          string                     `json:"author"`
	LifecycleState  string                     `json:"lifecycleState"`
	SpecificContent map[string]ugcShareContent `json:"specificContent"`
	Visibility      map[string]string          `json:"visibility"`
}

type ugcShareContent struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcMedia struct {
	Status string  `json:"status"`
	Media  string  `json:"media"`
	Title  ugcText `json:"title"`
}

type ugcText struct {
	Text string `json:"text"`
}

func newUGCPost(author, caption, asset string) ugcPost {
	share := ugcShareContent{
		ShareCommentary:    ugcText{Text: caption},
		ShareMediaCategory: "NONE",
	}
	if asset != "" {
		share.ShareMediaCategory = "IMAGE"
		share.Media = []ugcMedia{{
			Status: "READY",
			Media:  asset,
			Title:  ugcText{Text: "Job Opportunity Image"},
		}}
	}

	return ugcPost{
		Author:          author,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]ugcShareContent{"com.linkedin.ugc.ShareContent": share},
		Visibility:      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
}

func imageContentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/png"
}
