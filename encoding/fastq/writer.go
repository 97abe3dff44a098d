package fastq

import (
	"io"

	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

var newline = []byte{'\n'}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a new FASTQ writer
// that writes reads to the underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format.
// An error is returned if the write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Unk)
	w.writeln(r.Qual)
	return w.err
}

// WriteSAM converts r with FromSAM and writes it.
func (w *Writer) WriteSAM(r *sam.Record) error {
	read := FromSAM(r)
	return w.Write(&read)
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}

// PairWriter writes mate pairs to an R1 and an R2 stream, and reads
// without a mate to an optional third stream.  PairWriter is not
// thread-safe.
type PairWriter struct {
	r1, r2, unpaired *Writer
	nPairs, nSingles int64
}

// NewPairWriter creates a PairWriter.  unpaired may be nil, in which
// case WriteUnpaired discards its argument.
func NewPairWriter(r1, r2, unpaired io.Writer) *PairWriter {
	w := &PairWriter{r1: NewWriter(r1), r2: NewWriter(r2)}
	if unpaired != nil {
		w.unpaired = NewWriter(unpaired)
	}
	return w
}

// WritePair writes a and b to the R1 and R2 streams.  The record
// flagged as Read1 goes to R1; if neither or both are, a goes to R1.
func (w *PairWriter) WritePair(a, b *sam.Record) error {
	if a.Flags&sam.Read1 == 0 && b.Flags&sam.Read1 != 0 {
		a, b = b, a
	}
	if err := w.r1.WriteSAM(a); err != nil {
		return errors.Wrapf(err, "error writing R1 of %s", a.Name)
	}
	if err := w.r2.WriteSAM(b); err != nil {
		return errors.Wrapf(err, "error writing R2 of %s", b.Name)
	}
	w.nPairs++
	return nil
}

// WriteUnpaired writes r to the unpaired stream, if there is one.
func (w *PairWriter) WriteUnpaired(r *sam.Record) error {
	if w.unpaired == nil {
		return nil
	}
	if err := w.unpaired.WriteSAM(r); err != nil {
		return errors.Wrapf(err, "error writing unpaired read %s", r.Name)
	}
	w.nSingles++
	return nil
}

// Counts returns the number of pairs and unpaired reads written.
func (w *PairWriter) Counts() (pairs, unpaired int64) {
	return w.nPairs, w.nSingles
}
