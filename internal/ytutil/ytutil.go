package ytutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type IDType string

const (
	InvalidID  = IDType("invalid")
	ChannelID  = IDType("channel")
	PlaylistID = IDType("playlist")
	VideoID    = IDType("video")
)

var (
	channelIDPattern = regexp.MustCompile(`^UC[-_a-zA-Z0-9]{22}$`)
	videoIDPattern   = regexp.MustCompile(`^[-_a-zA-Z0-9]{11}$`)
)

func IsChannelID(s string) bool {
	return channelIDPattern.MatchString(s)
}

// UploadsPlaylistID derives the id of a channel's uploads playlist, which
// shares the channel id's suffix ("UCxyz" becomes "UUxyz").
func UploadsPlaylistID(channelID string) (string, error) {
	if !IsChannelID(channelID) {
		return "", fmt.Errorf("ytutil.UploadsPlaylistID: %q is not a channel id", channelID)
	}

	return "UU" + channelID[2:], nil
}

func ExtractAndIdentifyID(urlOrID string) (IDType, string, error) {
	if channelID, err := ExtractChannelID(urlOrID); err == nil {
		return ChannelID, channelID, nil
	}

	if playlistID, err := ExtractPlaylistID(urlOrID); err == nil {
		return PlaylistID, playlistID, nil
	}

	if videoID, err := ExtractVideoID(urlOrID); err == nil {
		return VideoID, videoID, nil
	}

	return InvalidID, "", fmt.Errorf("ytutil.ExtractAndIdentifyID: could not extract a known ID type from %q", urlOrID)
}

// ExtractChannelID accepts a bare channel id or a /channel/UC... URL.
// Handles and custom URLs need a page fetch; see ytpage.
func ExtractChannelID(urlOrID string) (string, error) {
	urlOrID = strings.TrimSpace(urlOrID)

	if IsChannelID(urlOrID) {
		return urlOrID, nil
	}

	parsed, err := url.Parse(urlOrID)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("ytutil.ExtractChannelID: invalid url or id; could not find a known pattern")
	}

	if id := parsed.Query().Get("channel_id"); id != "" {
		if !IsChannelID(id) {
			return "", fmt.Errorf("ytutil.ExtractChannelID: invalid channel_id parameter %q", id)
		}

		return id, nil
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "channel" {
		if !IsChannelID(parts[1]) {
			return "", fmt.Errorf("ytutil.ExtractChannelID: invalid channel id %q in path", parts[1])
		}

		return parts[1], nil
	}

	return "", fmt.Errorf("ytutil.ExtractChannelID: invalid url or id; could not find a known pattern")
}

func ExtractPlaylistID(urlOrID string) (string, error) {
	u, err := url.Parse(urlOrID)
	if err == nil && u.Scheme != "" && strings.HasSuffix(u.Host, "youtube.com") && u.Path == "/playlist" {
		return ExtractPlaylistID(u.Query().Get("list"))
	}

	playlistID := strings.TrimSpace(urlOrID)
	if len(playlistID) == 0 {
		return "", fmt.Errorf("ytutil.ExtractPlaylistID: empty input")
	}

	if strings.ContainsAny(playlistID, "/:?&= ") {
		return "", fmt.Errorf("ytutil.ExtractPlaylistID: invalid url or id; could not find a known pattern")
	}

	for _, prefix := range []string{"PL", "UU", "FL", "OL"} {
		if strings.HasPrefix(playlistID, prefix) && len(playlistID) > 12 {
			return playlistID, nil
		}
	}

	if len(playlistID) == 34 || len(playlistID) == 41 {
		return playlistID, nil
	}

	return "", fmt.Errorf("ytutil.ExtractPlaylistID: invalid url or id; could not find a known pattern")
}

func ExtractVideoID(urlOrID string) (string, error) {
	urlOrID = strings.TrimSpace(urlOrID)

	if videoIDPattern.MatchString(urlOrID) {
		return urlOrID, nil
	}

	parsed, err := url.Parse(urlOrID)
	if err != nil {
		return "", fmt.Errorf("ytutil.ExtractVideoID: %w", err)
	}

	var id string
	switch {
	case strings.HasSuffix(parsed.Host, "youtube.com") && parsed.Path == "/watch":
		id = parsed.Query().Get("v")
	case strings.HasSuffix(parsed.Host, "youtube.com") && strings.HasPrefix(parsed.Path, "/shorts/"):
		id = strings.TrimPrefix(parsed.Path, "/shorts/")
	case parsed.Host == "youtu.be":
		id = strings.TrimPrefix(parsed.Path, "/")
	default:
		return "", fmt.Errorf("ytutil.ExtractVideoID: invalid url or id; could not find a known pattern")
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("ytutil.ExtractVideoID: invalid video id %q; should be 11 url-safe characters", id)
	}

	return id, nil
}
