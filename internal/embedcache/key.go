package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key identifies one cached vector. Vectors from different models or task
// types never share an entry.
type Key struct {
	Model       string
	TaskType    string
	ContentHash string
}

func NewKey(modelName, taskType, text string) Key {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	sum := sha256.Sum256([]byte(text))
	return Key{Model: modelName, TaskType: taskType, ContentHash: hex.EncodeToString(sum[:])}
}

func (k Key) String() string {
	return "embed:" + k.Model + ":" + k.TaskType + ":" + k.ContentHash
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
