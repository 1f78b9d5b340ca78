package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var caseConversionTests = []struct {
	pascalCase string
	snakeCase  string
}{
	{"ID", "id"},
	{"ExternalID", "external_id"},
	{"Title", "title"},
	{"Etag", "etag"},
	{"UploadsPlaylistID", "uploads_playlist_id"},
	{"ChannelExternalID", "channel_external_id"},
	{"LastUploadsCutoff", "last_uploads_cutoff"},
	{"LastMembershipSyncAt", "last_membership_sync_at"},
	{"CommentsEnabled", "comments_enabled"},
	{"DefaultAudioLanguage", "default_audio_language"},
	{"CategoryID", "category_id"},
	{"YouTubeAPIKey", "you_tube_api_key"},
	{"SyncBatchSize", "sync_batch_size"},
	{"QueueName", "queue_name"},
	{"AttemptsRemaining", "attempts_remaining"},
	{"Transcoded360At", "transcoded360_at"},
}

func TestPascalToSnake(t *testing.T) {
	for _, tc := range caseConversionTests {
		t.Run(tc.pascalCase, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.snakeCase, PascalToSnake(tc.pascalCase))
		})
	}
}

func BenchmarkPascalToSnake(b *testing.B) {
	for _, tc := range caseConversionTests {
		b.Run(tc.pascalCase, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				PascalToSnake(tc.pascalCase)
			}
		})
	}
}
