package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/biogo/biogo/io/featio"
	"github.com/biogo/biogo/io/featio/gff"

	"sctools/internal/fasta"
	"sctools/internal/xio"
)

// ErrEmptyAnnotation is returned when the GTF holds no features.
var ErrEmptyAnnotation = errors.New("annotation has no features")

// References describes the checked reference files.
type References struct {
	Features    int
	Genes       int
	FirstContig string
}

// CheckReferences verifies that the annotation parses as GTF/GFF with at
// least one feature and that the genome FASTA has at least one record.
func CheckReferences(ctx context.Context, gtfPath, fastaPath string) (References, error) {
	var refs References
	rc, err := xio.Open(gtfPath)
	if err != nil {
		return refs, fmt.Errorf("annotation: %w", err)
	}
	defer rc.Close()

	sc := featio.NewScanner(gff.NewReader(rc))
	for sc.Next() {
		f, ok := sc.Feat().(*gff.Feature)
		if !ok {
			continue
		}
		refs.Features++
		if f.Feature == "gene" {
			refs.Genes++
		}
		if refs.Features%4096 == 0 && ctx.Err() != nil {
			return refs, ctx.Err()
		}
	}
	if err := sc.Error(); err != nil {
		return refs, fmt.Errorf("annotation %s: %w", gtfPath, err)
	}
	if refs.Features == 0 {
		return refs, fmt.Errorf("%s: %w", gtfPath, ErrEmptyAnnotation)
	}

	contig, err := fasta.FirstHeader(ctx, fastaPath)
	if err != nil {
		return refs, fmt.Errorf("genome: %w", err)
	}
	refs.FirstContig = contig
	return refs, nil
}
