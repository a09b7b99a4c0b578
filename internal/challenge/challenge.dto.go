package challenge

type UpdateDaysRequest struct {
	DurationDays int `json:"duration_days" validate:"required"`
}

type UpdateDifficultyRequest struct {
	Level       Level      `json:"level" validate:"required"`
	CustomTasks []TaskSpec `json:"custom_tasks,omitempty"`
}

type UpdateStatusRequest struct {
	Status        Status `json:"status" validate:"required"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type ShareQrResponse struct {
	ChallengeID  string `json:"challenge_id"`
	QrCodeBase64 string `json:"qr_code_base64"`
	DeepLink     string `json:"deep_link"`
}
