// Package legacy reads the pre-1.5 flag layout out of the Redis keyspace.
//
// Legacy flags live in three places per post:
//
//	post:<pid>                  hash with flags, flag:state, flag:assignee, flag:history, flag:notes
//	pid:<pid>:flag:uids         sorted set of reporter uids scored by report time (ms)
//	pid:<pid>:flag:uid:reason   sorted set of "<uid>:<reason>" members
//
// Posts are enumerated through the posts:pid sorted set.
package legacy

import "fmt"

// PostsKey is the sorted set indexing every post id.
const PostsKey = "posts:pid"

// Post hash fields carrying legacy flag state.
const (
	FieldFlagMarker   = "flags"
	FieldFlagState    = "flag:state"
	FieldFlagAssignee = "flag:assignee"
	FieldFlagHistory  = "flag:history"
	FieldFlagNotes    = "flag:notes"
)

// bundleFields is the HMGET field order used by GetBundles.
var bundleFields = []string{
	FieldFlagMarker,
	FieldFlagState,
	FieldFlagAssignee,
	FieldFlagHistory,
	FieldFlagNotes,
}

// PostKey returns the hash key for a post.
func PostKey(pid string) string {
	return "post:" + pid
}

// FlagVotesKey returns the sorted set of reporter uids for a post.
func FlagVotesKey(pid string) string {
	return fmt.Sprintf("pid:%s:flag:uids", pid)
}

// FlagReasonsKey returns the sorted set of "<uid>:<reason>" members for a post.
func FlagReasonsKey(pid string) string {
	return fmt.Sprintf("pid:%s:flag:uid:reason", pid)
}
