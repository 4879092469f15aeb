package cli

import (
	"fmt"
	"os"

	"github.com/roach88/hopscotch/internal/parse"
	"github.com/roach88/hopscotch/internal/pipeline"
)

// loadPlan reads a plan file and applies any mode override, reporting
// failures through the formatter. A missing file is a command error; a
// plan that will not parse is a compile failure.
func loadPlan(formatter *OutputFormatter, path, modeOverride string) (*pipeline.Traversal, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, outputCommandError(formatter, ErrCodeNotFound, fmt.Sprintf("plan file not found: %s", path))
	}

	formatter.VerboseLog("Loading plan: %s", path)
	tr, err := parse.LoadPlan(path)
	if err != nil {
		return nil, outputFailure(formatter, ErrCodeParse, err.Error())
	}

	if modeOverride != "" {
		mode, err := pipeline.ParseMode(modeOverride)
		if err != nil {
			return nil, outputCommandError(formatter, ErrCodeGeneric, err.Error())
		}
		if err := tr.SetMode(mode); err != nil {
			return nil, outputCommandError(formatter, ErrCodeGeneric, err.Error())
		}
		formatter.VerboseLog("Mode overridden to %s", mode)
	}

	return tr, nil
}
