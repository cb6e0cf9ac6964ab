package models

import "time"

// Kind identifies a relation collection. Follow and Message relate two
// users; Like, Dislike and Bookmark relate a user to a tuit.
type Kind string

const (
	KindFollow   Kind = "follow"
	KindLike     Kind = "like"
	KindDislike  Kind = "dislike"
	KindBookmark Kind = "bookmark"
	KindMessage  Kind = "message"
)

// Relation is a directed association from a subject (the acting user) to an
// object (a user or a tuit). For Follow/Like/Dislike/Bookmark the pair
// (kind, subject, object) identifies at most one stored instance.
type Relation struct {
	Kind      Kind      `json:"kind"`
	SubjectID string    `json:"subject_id"`
	ObjectID  string    `json:"object_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Reaction is the state of a user's like/dislike toggle on a tuit.
type Reaction string

const (
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
	ReactionNone    Reaction = "none"
)

// Outcome reports how many relations a delete removed. Deleting something
// that is already gone yields Removed=0, not an error.
type Outcome struct {
	Removed int `json:"removed"`
}

// Message is a direct message between two users. Unlike the other relation
// kinds, many messages may exist per (sender, recipient) pair; listings are
// ordered by SentOn ascending.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Body        string    `json:"body"`
	SentOn      time.Time `json:"sent_on"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Tuit struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"author_id"`
	Body     string    `json:"body"`
	PostedOn time.Time `json:"posted_on"`
}

// TeardownEvent asks the worker to tear down every relation anchored to a
// user, one cascade per relation kind.
type TeardownEvent struct {
	UserID      string    `json:"user_id"`
	RequestedAt time.Time `json:"requested_at"`
}
