package log

// Log field keys shared across packages.
const (
	ErrorMsgLogField       = "errorMsg"
	UserIDLogField         = "userID"
	RoleLogField           = "role"
	ConversationIDLogField = "conversationID"
	MessageIDLogField      = "messageID"
	AttemptLogField        = "attempt"
)
