package models

import (
	"time"

	"fknsrs.biz/p/ytcatalog/internal/sqlbuilderutil"
)

var (
	CommentReplyTable *sqlbuilderutil.Table
)

func init() {
	CommentReplyTable = sqlbuilderutil.MustMakeTable(CommentReply{})
}

// CommentReply is a reply draft for a pulled comment. Rows are written by
// the reply workflow; this service only lists them.
type CommentReply struct {
	ID                int       `sql:",table:comment_replies" json:"-"`
	ChannelExternalID string    `json:"channelId"`
	VideoExternalID   string    `json:"videoId"`
	CommentExternalID string    `json:"commentId"`
	AuthorName        string    `json:"authorName"`
	CommentText       string    `json:"commentText"`
	ReplyText         string    `json:"replyText"`
	Status            string    `json:"status"`
	PulledAt          time.Time `json:"pulledAt"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
