// Package chat answers questions against the personal knowledge base.
//
// A Service combines the user's profile, the recent turns of the
// conversation and the chunks retrieved for the question into one
// generation request, then records the exchange. Links found in a question
// are fetched and ingested in the background.
package chat
