package domain

// StoreSnapshot is the full content of a conversation store.
type StoreSnapshot struct {
	Conversations []Conversation
	Messages      []Message
	Reports       []Report
	Profiles      map[string]string
	RuntimesMs    map[ConversationID]uint64
}

// MessagesByConversation groups messages per conversation, each group sorted.
func (s StoreSnapshot) MessagesByConversation() map[ConversationID][]Message {
	grouped := make(map[ConversationID][]Message)
	for _, message := range s.Messages {
		grouped[message.ConversationID] = append(grouped[message.ConversationID], message)
	}
	for _, messages := range grouped {
		SortMessages(messages)
	}

	return grouped
}
