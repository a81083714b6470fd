package auth

import "github.com/jmcleod/folio/session"

// LoginRequest is the JSON body for POST /admin/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the data of a successful login.
type LoginResult struct {
	Token string        `json:"token"`
	Admin session.Admin `json:"admin"`
}

// ChangePasswordRequest is the JSON body for PUT /admin/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// SecurityQuestion is a prompt presented during recovery. Answers are
// withheld by the server.
type SecurityQuestion struct {
	Question string `json:"question"`
}

// QuestionAnswer pairs a question with its answer when configuring the
// admin's security questions.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// InitiateResetRequest is the JSON body for POST /admin/forgot-password/initiate.
type InitiateResetRequest struct {
	Email string `json:"email"`
}

// ResetChallenge is the data of a successful reset initiation.
type ResetChallenge struct {
	ResetToken string             `json:"resetToken"`
	Questions  []SecurityQuestion `json:"questions"`
}

// VerifyAnswersRequest is the JSON body for POST /admin/forgot-password/verify.
type VerifyAnswersRequest struct {
	ResetToken string   `json:"resetToken"`
	Answers    []string `json:"answers"`
}

// Verification is the data of a successful answer verification.
type Verification struct {
	VerificationToken string `json:"verificationToken"`
}

// ResetPasswordRequest is the JSON body for POST /admin/forgot-password/reset.
type ResetPasswordRequest struct {
	VerificationToken string `json:"verificationToken"`
	NewPassword       string `json:"newPassword"`
}

// SecurityQuestionsResponse is the data of GET /admin/security-questions.
type SecurityQuestionsResponse struct {
	Questions []SecurityQuestion `json:"questions"`
}

// UpdateSecurityQuestionsRequest is the JSON body for PUT /admin/security-questions.
type UpdateSecurityQuestionsRequest struct {
	Questions []QuestionAnswer `json:"questions"`
}
