package models

import "time"

// Session is the conversation state of one chat.
type Session struct {
	ChatID int64                  `json:"chat_id"`
	UserID int64                  `json:"user_id,omitempty"`
	Role   Role                   `json:"role,omitempty"`
	Step   string                 `json:"step,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != 0
}

func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.Role == RoleAdmin
}

func (s *Session) Set(key string, value interface{}) {
	if s.Data == nil {
		s.Data = make(map[string]interface{})
	}
	s.Data[key] = value
}

func (s *Session) GetInt64(key string) int64 {
	if s.Data == nil {
		return 0
	}
	val, ok := s.Data[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func (s *Session) GetString(key string) string {
	if s.Data == nil {
		return ""
	}
	if str, ok := s.Data[key].(string); ok {
		return str
	}
	return ""
}

// GetTime understands both time.Time values and RFC3339 strings left by JSON round-trips.
func (s *Session) GetTime(key string) time.Time {
	if s.Data == nil {
		return time.Time{}
	}
	switch v := s.Data[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}
