package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateETag builds a weak validator from a document id, its timestamp and
// any extra values that change the representation (counts, filters).
func GenerateETag(id primitive.ObjectID, t time.Time, extras ...any) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%d", id.Hex(), t.UnixNano())
	for _, e := range extras {
		fmt.Fprintf(h, "|%v", e)
	}
	return `W/"` + hex.EncodeToString(h.Sum(nil)) + `"`
}
