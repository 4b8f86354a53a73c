package linkedin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pilab-dev/pagepost/log"
)

const (
	feedShareImageRecipe   = "urn:li:digitalmediaRecipe:feedshare-image"
	ugcServiceIdentifier   = "urn:li:userGeneratedContent"
	ownerRelationship      = "OWNER"
	synchronousUpload      = "SYNCHRONOUS_UPLOAD"
	mediaUploadHTTPRequest = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
)

type registerUploadRequest struct {
	RegisterUploadRequest registerUploadBody `json:"registerUploadRequest"`
}

type registerUploadBody struct {
	Recipes                  []string              `json:"recipes"`
	Owner                    string                `json:"owner"`
	ServiceRelationships     []serviceRelationship `json:"serviceRelationships"`
	SupportedUploadMechanism []string              `json:"supportedUploadMechanism"`
}

type serviceRelationship struct {
	RelationshipType string `json:"relationshipType"`
	Identifier       string `json:"identifier"`
}

type registerUploadResponse struct {
	Value struct {
		UploadMechanism map[string]struct {
			UploadURL string            `json:"uploadUrl"`
			Headers   map[string]string `json:"headers"`
		} `json:"uploadMechanism"`
		Asset string `json:"asset"`
	} `json:"value"`
}

// UploadSlot is a registered, not yet filled, upload.
type UploadSlot struct {
	UploadURL string
	Asset     string
}

func newRegisterUploadRequest(orgID string) registerUploadRequest {
	return registerUploadRequest{
		RegisterUploadRequest: registerUploadBody{
			Recipes: []string{feedShareImageRecipe},
			Owner:   OrganizationURN(orgID),
			ServiceRelationships: []serviceRelationship{{
				RelationshipType: ownerRelationship,
				Identifier:       ugcServiceIdentifier,
			}},
			SupportedUploadMechanism: []string{synchronousUpload},
		},
	}
}

// RegisterUpload asks LinkedIn for an upload URL for an image owned by orgID.
func (c *Client) RegisterUpload(ctx context.Context, accessToken, orgID string, opts ...CallOption) (*UploadSlot, error) {
	if accessToken == "" {
		return nil, &UpstreamError{Op: opRegister.desc, Err: ErrMissingAccessToken}
	}
	if orgID == "" {
		return nil, &UpstreamError{Op: opRegister.desc, Err: ErrMissingOrgID}
	}
	o := applyCallOptions(callOptions{timeout: c.uploadTimeout}, opts)

	var out registerUploadResponse
	resp, err := c.sendJSON(ctx, request{
		op:          opRegister,
		method:      http.MethodPost,
		url:         RegisterUploadEndpoint,
		accessToken: accessToken,
		timeout:     o.timeout,
	}, newRegisterUploadRequest(orgID), &out)
	if err != nil {
		return nil, err
	}

	mech, ok := out.Value.UploadMechanism[mediaUploadHTTPRequest]
	if !ok || mech.UploadURL == "" {
		return nil, &UpstreamError{Op: opRegister.desc, StatusCode: resp.statusCode, Body: string(resp.body), Err: errors.New("response missing uploadUrl")}
	}
	if out.Value.Asset == "" {
		return nil, &UpstreamError{Op: opRegister.desc, StatusCode: resp.statusCode, Body: string(resp.body), Err: errors.New("response missing asset")}
	}

	return &UploadSlot{UploadURL: mech.UploadURL, Asset: out.Value.Asset}, nil
}

// UploadAsset PUTs the raw image bytes to a registered upload URL.
func (c *Client) UploadAsset(ctx context.Context, accessToken, uploadURL string, body io.Reader, size int64, opts ...CallOption) error {
	o := applyCallOptions(callOptions{timeout: c.uploadTimeout}, opts)

	_, err := c.send(ctx, request{
		op:            opUpload,
		method:        http.MethodPut,
		url:           uploadURL,
		accessToken:   accessToken,
		contentType:   "application/octet-stream",
		body:          body,
		contentLength: size,
		timeout:       o.timeout,
	})

	return err
}

// DetectMediaType sniffs the file at path and returns its MIME type. The
// result is informational only: LinkedIn validates the bytes it receives.
func DetectMediaType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	return mtype.String()
}

// UploadImage registers an upload for orgID, streams the file at path to it
// and returns the asset id to reference from a post. The caller owns the
// file; it is never removed here. A failed registration means no upload is
// attempted.
func (c *Client) UploadImage(ctx context.Context, accessToken, orgID, path, filename string, opts ...CallOption) (string, error) {
	mediaType := DetectMediaType(path)
	if !strings.HasPrefix(mediaType, "image/") {
		c.logger.Warn(ctx, "uploading a file that does not look like an image", log.Fields{
			"filename":   filename,
			"media_type": mediaType,
		})
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat upload: %w", err)
	}

	slot, err := c.RegisterUpload(ctx, accessToken, orgID, opts...)
	if err != nil {
		return "", err
	}

	if err := c.UploadAsset(ctx, accessToken, slot.UploadURL, f, info.Size(), opts...); err != nil {
		return "", err
	}

	c.logger.Info(ctx, "image uploaded", log.Fields{
		"org_id":     OrganizationID(orgID),
		"asset":      slot.Asset,
		"filename":   filename,
		"media_type": mediaType,
		"size":       info.Size(),
	})

	return slot.Asset, nil
}
