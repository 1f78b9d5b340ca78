package queuenames

const (
	// ChannelUpdateMetadata refreshes a channel's title and uploads feed.
	ChannelUpdateMetadata = "channel_update_metadata"
	// ChannelSync runs a full catalog sync for one channel.
	ChannelSync = "channel_sync"
)

var All = []string{
	ChannelUpdateMetadata,
	ChannelSync,
}
