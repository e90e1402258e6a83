package session

import "encoding/json"

// State is the continuation state returned by an agent run: the full message
// list it ended with. Values are treated as immutable; every accessor copies.
type State struct {
	messages []Message
}

// NewState snapshots msgs.
func NewState(msgs []Message) State {
	return State{messages: cloneMessages(msgs)}
}

// ToInputList returns the messages to feed the next run, oldest first.
func (s State) ToInputList() []Message {
	return cloneMessages(s.messages)
}

// Len is the number of messages in the state.
func (s State) Len() int { return len(s.messages) }

// IsZero reports whether the state holds no messages.
func (s State) IsZero() bool { return len(s.messages) == 0 }

func (s State) MarshalJSON() ([]byte, error) {
	msgs := s.messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(struct {
		Messages []Message `json:"messages"`
	}{msgs})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw struct {
		Messages []Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.messages = raw.Messages
	return nil
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Input is what a run starts from: either raw text alone, or a prior state
// with the new user turn appended.
type Input struct {
	Text  string
	Prior *State
}

// Messages expands the input into the list handed to the model.
func (in Input) Messages() []Message {
	var msgs []Message
	if in.Prior != nil {
		msgs = in.Prior.ToInputList()
	}
	return append(msgs, UserMessage(in.Text))
}

// Result is the outcome of one agent run.
type Result struct {
	FinalOutput string
	State       State
	ToolCalls   int
	Turns       int
}
