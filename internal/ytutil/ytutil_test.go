package ytutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testChannelID = "UCuAXFkgsw1L7xaCfnd5JJOw"

func TestUploadsPlaylistID(t *testing.T) {
	a := assert.New(t)

	id, err := UploadsPlaylistID(testChannelID)
	a.NoError(err)
	a.Equal("UUuAXFkgsw1L7xaCfnd5JJOw", id)

	_, err = UploadsPlaylistID("UUuAXFkgsw1L7xaCfnd5JJOw")
	a.Error(err)

	_, err = UploadsPlaylistID("")
	a.Error(err)
}

func TestExtractAndIdentifyID(t *testing.T) {
	tests := []struct {
		input string
		typ   IDType
		id    string
	}{
		{testChannelID, ChannelID, testChannelID},
		{"https://www.youtube.com/channel/" + testChannelID, ChannelID, testChannelID},
		{"https://www.youtube.com/channel/" + testChannelID + "/videos", ChannelID, testChannelID},
		{"https://www.youtube.com/feeds/videos.xml?channel_id=" + testChannelID, ChannelID, testChannelID},
		{"https://www.youtube.com/playlist?list=PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI", PlaylistID, "PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI"},
		{"UUuAXFkgsw1L7xaCfnd5JJOw", PlaylistID, "UUuAXFkgsw1L7xaCfnd5JJOw"},
		{"dQw4w9WgXcQ", VideoID, "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", VideoID, "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", VideoID, "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", VideoID, "dQw4w9WgXcQ"},
		{"https://www.youtube.com/@somehandle", InvalidID, ""},
		{"", InvalidID, ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			a := assert.New(t)

			typ, id, err := ExtractAndIdentifyID(tc.input)
			a.Equal(tc.typ, typ)
			a.Equal(tc.id, id)
			if tc.typ == InvalidID {
				a.Error(err)
			} else {
				a.NoError(err)
			}
		})
	}
}

func TestExtractChannelIDRejectsBadIDs(t *testing.T) {
	a := assert.New(t)

	_, err := ExtractChannelID("https://www.youtube.com/channel/short")
	a.Error(err)

	_, err = ExtractChannelID("https://www.youtube.com/feeds/videos.xml?channel_id=nope")
	a.Error(err)
}
