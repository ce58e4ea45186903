package queue

// TypeAudioProcess runs the full audio pipeline for a spooled upload.
const TypeAudioProcess = "audio:process"

// AudioProcessPayload points a worker at a spooled audio file. The
// worker owns the file and removes it when the task finishes.
type AudioProcessPayload struct {
	JobID       string `json:"job_id"`
	AudioPath   string `json:"audio_path"`
	Filename    string `json:"filename"`
	ModelChoice string `json:"model_choice"`
}
