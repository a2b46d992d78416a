package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hyperware-ai/chat/internal/blob"
	"github.com/hyperware-ai/chat/internal/chat"
)

// The local API mirrors the node's operations one endpoint per op.
// Request bodies use the same snake_case fields the WebSocket wire uses.

func (s *Server) registerAPI(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/chats", s.handleCreateChat).Methods(http.MethodPost)
	api.HandleFunc("/chats", s.handleGetChats).Methods(http.MethodGet)
	api.HandleFunc("/chats/search", s.handleSearchChats).Methods(http.MethodPost)
	api.HandleFunc("/chats/mark-read", s.handleMarkRead).Methods(http.MethodPost)
	api.HandleFunc("/chats/{id}", s.handleGetChat).Methods(http.MethodGet)
	api.HandleFunc("/chats/{id}", s.handleDeleteChat).Methods(http.MethodDelete)

	api.HandleFunc("/messages/send", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/edit", s.handleEditMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/delete", s.handleDeleteMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/forward", s.handleForwardMessage).Methods(http.MethodPost)
	api.HandleFunc("/messages/reactions/add", s.handleAddReaction).Methods(http.MethodPost)
	api.HandleFunc("/messages/reactions/remove", s.handleRemoveReaction).Methods(http.MethodPost)

	api.HandleFunc("/files/upload", s.handleUploadFile).Methods(http.MethodPost)
	api.HandleFunc("/files/{chat}/{message}/{filename}", s.handleDownloadFile).Methods(http.MethodGet)
	api.HandleFunc("/voice", s.handleSendVoiceNote).Methods(http.MethodPost)

	api.HandleFunc("/chat-links", s.handleCreateChatLink).Methods(http.MethodPost)
	api.HandleFunc("/chat-keys", s.handleGetChatKeys).Methods(http.MethodGet)
	api.HandleFunc("/chat-keys/revoke", s.handleRevokeChatKey).Methods(http.MethodPost)

	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods(http.MethodPut)
	api.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/profile/picture", s.handleUploadProfilePicture).Methods(http.MethodPost)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debug("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, chat.ErrChatNotFound),
		errors.Is(err, chat.ErrMessageNotFound),
		errors.Is(err, chat.ErrKeyNotFound),
		errors.Is(err, blob.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrKeyRevoked):
		status = http.StatusGone
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Counterparty string `json:"counterparty"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	c, err := s.service.CreateChat(r.Context(), req.Counterparty)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetChats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Chats())
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.Chat(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteChat(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearchChats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.service.SearchChats(req.Query))
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID string `json:"chat_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.MarkRead(req.ChatID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID  string  `json:"chat_id"`
		Content string  `json:"content"`
		ReplyTo *string `json:"reply_to"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.service.SendMessage(r.Context(), req.ChatID, req.Content, req.ReplyTo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID  string `json:"message_id"`
		NewContent string `json:"new_content"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.EditMessage(req.MessageID, req.NewContent); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "edited"})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"message_id"`
		BothSides bool   `json:"both_sides"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.DeleteMessage(r.Context(), req.MessageID, req.BothSides); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleForwardMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"message_id"`
		ToChatID  string `json:"to_chat_id"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.service.ForwardMessage(r.Context(), req.MessageID, req.ToChatID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleAddReaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.AddReaction(r.Context(), req.MessageID, req.Emoji); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reaction added"})
}

func (s *Server) handleRemoveReaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.RemoveReaction(r.Context(), req.MessageID, req.Emoji); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reaction removed"})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID   string  `json:"chat_id"`
		Filename string  `json:"filename"`
		MimeType string  `json:"mime_type"`
		Data     string  `json:"data"`
		ReplyTo  *string `json:"reply_to"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.service.UploadFile(r.Context(), req.ChatID, req.Filename, req.MimeType, req.Data, req.ReplyTo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		s.writeError(w, blob.ErrNotFound)
		return
	}
	vars := mux.Vars(r)
	path := blob.FilePath(vars["chat"], vars["message"], vars["filename"])
	data, err := s.blobs.Get(path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleSendVoiceNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID    string  `json:"chat_id"`
		AudioData string  `json:"audio_data"`
		Duration  uint64  `json:"duration"`
		ReplyTo   *string `json:"reply_to"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.service.SendVoiceNote(r.Context(), req.ChatID, req.AudioData, req.Duration, req.ReplyTo)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleCreateChatLink(w http.ResponseWriter, r *http.Request) {
	link, key, err := s.service.CreateChatLink(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"link": link, "key": key.Key})
}

func (s *Server) handleGetChatKeys(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.ChatKeys())
}

func (s *Server) handleRevokeChatKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.RevokeChatKey(r.Context(), req.Key); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings chat.Settings
	if !s.decode(w, r, &settings) {
		return
	}
	s.service.UpdateSettings(settings)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "settings updated"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Profile())
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile chat.Profile
	if !s.decode(w, r, &profile) {
		return
	}
	s.service.UpdateProfile(profile)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "profile updated"})
}

func (s *Server) handleUploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageData string `json:"image_data"`
		MimeType  string `json:"mime_type"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	dataURL, err := s.service.UploadProfilePicture(req.MimeType, req.ImageData)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"url": dataURL})
}
