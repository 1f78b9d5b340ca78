package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"fknsrs.biz/p/ytcatalog/internal/httputil"
	"fknsrs.biz/p/ytcatalog/internal/ytpage"
)

func NewRouter(resolver *ytpage.Resolver) *mux.Router {
	m := mux.NewRouter()

	m.Methods(http.MethodGet).Path("/channels").HandlerFunc(Channels)
	m.Methods(http.MethodPost).Path("/channels").HandlerFunc(RegisterChannel(resolver))
	m.Methods(http.MethodGet).Path("/channels/{id}").HandlerFunc(Channel)
	m.Methods(http.MethodPost).Path("/channels/{id}/sync").HandlerFunc(SyncChannel)
	m.Methods(http.MethodGet).Path("/channels/{id}/videos").HandlerFunc(ChannelVideos)
	m.Methods(http.MethodGet).Path("/channels/{id}/playlists").HandlerFunc(ChannelPlaylists)
	m.Methods(http.MethodGet).Path("/channels/{id}/replies").HandlerFunc(ChannelReplies)
	m.Methods(http.MethodGet).Path("/playlists/{id}/videos").HandlerFunc(PlaylistVideos)
	m.Methods(http.MethodGet).Path("/jobs").HandlerFunc(Jobs)

	m.NotFoundHandler = http.HandlerFunc(httputil.NotFound)

	return m
}
