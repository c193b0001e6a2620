package artifact

import (
	"encoding/json"
	"fmt"
)

func unmarshalIndex(data []byte, ix *Index) error {
	if err := json.Unmarshal(data, ix); err != nil {
		return fmt.Errorf("malformed manifest: %w", err)
	}
	if ix.RunID == "" {
		return fmt.Errorf("malformed manifest: missing run_id")
	}
	return nil
}
