package fastq

import (
	"github.com/grailbio/hts/sam"
)

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// missingQual is written for each base of a record that carries no
// qualities.
const missingQual = 1

var complement = func() (t [256]byte) {
	for i := range t {
		t[i] = 'N'
	}
	for _, p := range []string{"AT", "CG", "GC", "TA", "at", "cg", "gc", "ta"} {
		t[p[0]] = p[1]
	}
	return
}()

// FromSAM converts r to a FASTQ read in sequencing orientation: records
// aligned to the reverse strand are reverse-complemented, and their
// qualities reversed.
func FromSAM(r *sam.Record) Read {
	seq := r.Seq.Expand()
	qual := make([]byte, len(seq))
	for i := range qual {
		q := byte(missingQual)
		if i < len(r.Qual) && r.Qual[i] != 0xff {
			q = r.Qual[i]
		}
		qual[i] = q + 33
	}
	if r.Flags&sam.Reverse != 0 {
		for i, j := 0, len(seq)-1; i < j; i, j = i+1, j-1 {
			seq[i], seq[j] = complement[seq[j]], complement[seq[i]]
			qual[i], qual[j] = qual[j], qual[i]
		}
		if len(seq)%2 == 1 {
			mid := len(seq) / 2
			seq[mid] = complement[seq[mid]]
		}
	}
	return Read{
		ID:   "@" + r.Name,
		Seq:  string(seq),
		Unk:  "+",
		Qual: string(qual),
	}
}
