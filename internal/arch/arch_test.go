package arch

import (
	"bytes"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"testing"
)

type pkg struct {
	ImportPath string
	Imports    []string
	Standard   bool
}

// appLayer is what library packages must never import.
var appLayer = []string{
	"sctools/internal/scxapp", "sctools/internal/validateapp",
	"sctools/internal/clibase", "sctools/internal/appshell", "sctools/cmd/",
}

func TestImportBoundaries(t *testing.T) {
	cmd := exec.Command("go", "list", "-json", "./...")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("go list: %v", err)
	}
	dec := json.NewDecoder(&out)

	bans := map[string][]string{
		"sctools/internal/adata": append([]string{
			"sctools/internal/ingest", "sctools/internal/store", "sctools/internal/output",
			"sctools/internal/writers", "sctools/internal/config",
		}, appLayer...),
		"sctools/internal/preprocess": appLayer,
		"sctools/internal/reduce":     appLayer,
		"sctools/internal/cluster":    appLayer,
		"sctools/internal/resscan":    append([]string{"sctools/internal/output", "sctools/internal/writers"}, appLayer...),
		"sctools/internal/subset":     appLayer,
		"sctools/internal/classify":   appLayer,
		"sctools/internal/rank":       appLayer,
		"sctools/internal/store":      append([]string{"sctools/internal/output", "sctools/internal/writers"}, appLayer...),
		"sctools/internal/uniprot":    append([]string{"sctools/internal/output", "sctools/internal/writers"}, appLayer...),
		"sctools/internal/pipeline":   appLayer,
		"sctools/internal/writers":    append([]string{"sctools/internal/pipeline", "sctools/internal/config"}, appLayer...),
		"sctools/internal/output":     append([]string{"sctools/internal/config"}, appLayer...),
	}

	var violations []string
	for {
		var p pkg
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.HasPrefix(p.ImportPath, "sctools/") {
			continue
		}
		imp := p.ImportPath
		for prefix, forbidden := range bans {
			if imp != prefix && !strings.HasPrefix(imp, prefix+"/") {
				continue
			}
			for _, dep := range p.Imports {
				if !strings.HasPrefix(dep, "sctools/") {
					continue
				}
				for _, ban := range forbidden {
					if strings.HasPrefix(dep, ban) {
						violations = append(violations, imp+" → "+dep)
					}
				}
			}
		}
	}

	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n  %s", strings.Join(violations, "\n  "))
	}
}
