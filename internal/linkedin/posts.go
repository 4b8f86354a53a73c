package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	LifecycleStatePublished = "PUBLISHED"
	VisibilityPublic        = "PUBLIC"
	MediaStatusReady        = "READY"

	MediaCategoryNone  = "NONE"
	MediaCategoryImage = "IMAGE"
)

// PostPayload is the body of a UGC post.
type PostPayload struct {
	Author          string          `json:"author"`
	LifecycleState  string          `json:"lifecycleState"`
	SpecificContent SpecificContent `json:"specificContent"`
	Visibility      Visibility      `json:"visibility"`
}

// SpecificContent wraps the share content under its LinkedIn type key.
type SpecificContent struct {
	ShareContent ShareContent `json:"com.linkedin.ugc.ShareContent"`
}

// ShareContent is the commentary and media of a share.
type ShareContent struct {
	ShareCommentary    Text    `json:"shareCommentary"`
	ShareMediaCategory string  `json:"shareMediaCategory"`
	Media              []Media `json:"media"`
}

// Media references one uploaded asset.
type Media struct {
	Status      string `json:"status"`
	Description *Text  `json:"description,omitempty"`
	Media       string `json:"media"`
	Title       *Text  `json:"title,omitempty"`
}

// Text is LinkedIn's {"text": ...} wrapper.
type Text struct {
	Text string `json:"text"`
}

// Visibility controls who can see the post; always PUBLIC here.
type Visibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

// BuildPostPayload assembles a post for orgID. With an asset the category is
// IMAGE with a single READY media entry; without one it is NONE with an empty
// media list. title is optional and only used with an asset.
func BuildPostPayload(orgID, text, assetID, title string) PostPayload {
	content := ShareContent{
		ShareCommentary:    Text{Text: text},
		ShareMediaCategory: MediaCategoryNone,
		Media:              []Media{},
	}

	if assetID != "" {
		m := Media{Status: MediaStatusReady, Media: assetID}
		if title != "" {
			m.Title = &Text{Text: title}
		}
		content.ShareMediaCategory = MediaCategoryImage
		content.Media = []Media{m}
	}

	return PostPayload{
		Author:          OrganizationURN(orgID),
		LifecycleState:  LifecycleStatePublished,
		SpecificContent: SpecificContent{ShareContent: content},
		Visibility:      Visibility{MemberNetworkVisibility: VisibilityPublic},
	}
}

// Publish submits the post and returns LinkedIn's response body untouched.
// LinkedIn may answer 201 with no body; the created id from the X-RestLi-Id
// header is returned as {"id": ...} then.
func (c *Client) Publish(ctx context.Context, accessToken string, payload PostPayload, opts ...CallOption) (json.RawMessage, error) {
	if accessToken == "" {
		return nil, &UpstreamError{Op: opPublish.desc, Err: ErrMissingAccessToken}
	}
	o := applyCallOptions(callOptions{}, opts)

	resp, err := c.sendJSON(ctx, request{
		op:          opPublish,
		method:      http.MethodPost,
		url:         UGCPostsEndpoint,
		accessToken: accessToken,
		headers:     map[string]string{restliProtocolHeader: restliProtocolVersion},
		timeout:     o.timeout,
	}, payload, nil)
	if err != nil {
		return nil, err
	}

	if len(resp.body) == 0 {
		id := resp.header.Get(restliIDHeader)
		if id == "" {
			return json.RawMessage("null"), nil
		}
		raw, _ := json.Marshal(map[string]string{"id": id})
		return raw, nil
	}

	if !json.Valid(resp.body) {
		raw, _ := json.Marshal(string(resp.body))
		return raw, nil
	}

	return json.RawMessage(resp.body), nil
}
