package chat

// MessageType distinguishes the payload carried by a message.
type MessageType string

const (
	TypeText      MessageType = "Text"
	TypeImage     MessageType = "Image"
	TypeFile      MessageType = "File"
	TypeVoiceNote MessageType = "VoiceNote"
)

// Reaction is a single emoji reaction. A message holds at most one
// reaction per (user, emoji) pair; the first one wins.
type Reaction struct {
	Emoji     string `json:"emoji"`
	User      string `json:"user"`
	Timestamp int64  `json:"timestamp"`
}

// FileInfo describes an attached payload. URL is a data URL while the
// payload is in flight and a local blob path once persisted.
type FileInfo struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     uint64 `json:"size"`
	URL      string `json:"url"`
}

// Message is one chat message. ID has the form <unix_seconds>:<random_u32>
// and is globally unique per sender. Content is never mutated after
// delivery; only status and reactions change.
type Message struct {
	ID          string      `json:"id"`
	Sender      string      `json:"sender"`
	Content     string      `json:"content"`
	Timestamp   int64       `json:"timestamp"`
	Status      Status      `json:"status"`
	ReplyTo     string      `json:"replyTo,omitempty"`
	Reactions   []Reaction  `json:"reactions"`
	MessageType MessageType `json:"messageType"`
	FileInfo    *FileInfo   `json:"fileInfo,omitempty"`
}

// HasReaction reports whether user already reacted with emoji.
func (m *Message) HasReaction(user, emoji string) bool {
	for _, r := range m.Reactions {
		if r.User == user && r.Emoji == emoji {
			return true
		}
	}
	return false
}

// Chat is a 1:1 conversation with a counterparty node or a browser guest.
type Chat struct {
	ID           string    `json:"id"`
	Counterparty string    `json:"counterparty"`
	Messages     []Message `json:"messages"`
	LastActivity int64     `json:"lastActivity"`
	UnreadCount  uint32    `json:"unreadCount"`
	IsBlocked    bool      `json:"isBlocked"`
	Notify       bool      `json:"notify"`
}

// Key is a capability token that authenticates an anonymous browser
// session into a single chat. Revocation is one-way.
type Key struct {
	Key       string `json:"key"`
	UserName  string `json:"userName"`
	CreatedAt int64  `json:"createdAt"`
	IsRevoked bool   `json:"isRevoked"`
	ChatID    string `json:"chatId"`
}

// Profile is the local user's display identity.
type Profile struct {
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Settings holds per-node chat preferences.
type Settings struct {
	ShowImages         bool   `json:"showImages"`
	ShowProfilePics    bool   `json:"showProfilePics"`
	CombineChatsGroups bool   `json:"combineChatsGroups"`
	NotifyChats        bool   `json:"notifyChats"`
	NotifyGroups       bool   `json:"notifyGroups"`
	NotifyCalls        bool   `json:"notifyCalls"`
	AllowBrowserChats  bool   `json:"allowBrowserChats"`
	STTEnabled         bool   `json:"sttEnabled"`
	STTAPIKey          string `json:"sttApiKey,omitempty"`
}

// DefaultSettings returns the settings a fresh node starts with.
func DefaultSettings() Settings {
	return Settings{
		ShowImages:        true,
		ShowProfilePics:   true,
		NotifyChats:       true,
		NotifyGroups:      true,
		NotifyCalls:       true,
		AllowBrowserChats: true,
	}
}
