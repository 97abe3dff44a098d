package converter

// Utility for converting BAM to paired FASTQ.

import (
	"bufio"
	"context"
	"io"
	"runtime"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bamtofastq/encoding/bampair"
	"github.com/grailbio/bamtofastq/encoding/fastq"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
	"v.io/x/lib/vlog"
)

const (
	// DefaultBatchSize is the default value of FASTQOpts.BatchSize.
	DefaultBatchSize = 4096
	// pairChanSize is the number of pairs buffered between the caches
	// and the FASTQ writer.  The caches emit pairs while holding their
	// lock, so the buffer keeps a slow writer from stalling the workers.
	pairChanSize = 1 << 16
)

// FASTQOpts configures ConvertToFASTQ.
type FASTQOpts struct {
	// Parallelism is the number of goroutines feeding records into the
	// cache.  Defaults to runtime.NumCPU().
	Parallelism int
	// BatchSize is the number of consecutive records handed to a worker
	// at once.  Defaults to DefaultBatchSize.
	BatchSize int
	// Cache configures the mate-pairing cache.
	Cache bampair.Opts
	// Shared makes all workers feed one cache.  Each batch is added under
	// a single lock acquisition.
	//
	// If Shared is false, each worker owns a private cache, and only the
	// cache statistics are merged at the end.  Two mates that are handed
	// to different workers never meet, and both are written as unpaired
	// reads.  Private caches only pair reliably when Parallelism is 1 or
	// when mates are close together relative to BatchSize.
	//
	// Batches are runs of consecutive records in file order, not genomic
	// regions.  The BAM is read sequentially, so no index is needed and
	// unmapped or unsorted input works the same way.
	Shared bool
	// Unpaired is the path of the FASTQ file for reads without a mate:
	// unpaired reads and paired reads whose mate was not found.  If
	// empty, those reads are dropped.
	Unpaired string
}

// FASTQStats summarizes a ConvertToFASTQ run.
type FASTQStats struct {
	// Records is the number of records read from the BAM file.
	Records int64
	// Skipped is the number of secondary and supplementary records.
	Skipped int64
	// Pairs is the number of mate pairs written.
	Pairs int64
	// Singles is the number of primary records not flagged as paired.
	Singles int64
	// Orphans is the number of paired records whose mate was not found.
	Orphans int64
	// Cache holds the cache statistics, merged over all caches.
	Cache bampair.Stats
}

func (o FASTQOpts) withDefaults() FASTQOpts {
	if o.Parallelism <= 0 {
		o.Parallelism = runtime.NumCPU()
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

func isPrimary(r *sam.Record) bool {
	return (r.Flags&sam.Secondary) == 0 && (r.Flags&sam.Supplementary) == 0
}

// fastqItem is a pair (both fields set) or an unpaired read (b == nil).
type fastqItem struct {
	a, b *sam.Record
}

// output is one FASTQ output file, gzip-compressed if its path ends in
// ".gz".
type output struct {
	path string
	f    file.File
	gz   *gzip.Writer
	buf  *bufio.Writer
}

func createOutput(ctx context.Context, path string) (*output, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "couldn't create FASTQ file:", path)
	}
	o := &output{path: path, f: f}
	var w io.Writer = f.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		o.gz = gzip.NewWriter(w)
		w = o.gz
	}
	o.buf = bufio.NewWriterSize(w, 1<<20)
	return o, nil
}

func (o *output) close(ctx context.Context) error {
	if o == nil {
		return nil
	}
	err := errors.Once{}
	err.Set(o.buf.Flush())
	if o.gz != nil {
		err.Set(o.gz.Close())
	}
	err.Set(o.f.Close(ctx))
	if err.Err() != nil {
		return errors.E(err.Err(), "error writing FASTQ file:", o.path)
	}
	return nil
}

func (o *output) writer() io.Writer {
	if o == nil {
		return nil
	}
	return o.buf
}

// ConvertToFASTQ reads the BAM file at bamPath and writes every mate
// pair to r1Path and r2Path.  Secondary and supplementary records are
// skipped.  Reads that end up without a mate are written to
// opts.Unpaired, if set.  Mate pairs are written in an unspecified
// order, but R1 and R2 always hold the two reads of a pair on the same
// line.
//
// Records are read sequentially and distributed in batches to
// opts.Parallelism workers, which feed them into bampair caches.  Once
// all records are in, the caches are flushed to pair up the remaining
// mates.
func ConvertToFASTQ(ctx context.Context, bamPath, r1Path, r2Path string, opts FASTQOpts) (FASTQStats, error) {
	opts = opts.withDefaults()
	var stats FASTQStats
	if r1Path == "" || r2Path == "" {
		return stats, errors.E(errors.Invalid, "both R1 and R2 output paths must be set")
	}

	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return stats, errors.E(err, "couldn't open BAM file:", bamPath)
	}
	defer in.Close(ctx)
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return stats, errors.E(err, "couldn't read BAM header:", bamPath)
	}
	defer reader.Close()

	var outputs [3]*output
	for i, path := range []string{r1Path, r2Path, opts.Unpaired} {
		if path == "" {
			continue
		}
		if outputs[i], err = createOutput(ctx, path); err != nil {
			for _, o := range outputs[:i] {
				o.close(ctx)
			}
			return stats, err
		}
	}
	w := fastq.NewPairWriter(outputs[0].writer(), outputs[1].writer(), outputs[2].writer())

	e := errors.Once{}
	itemCh := make(chan fastqItem, pairChanSize)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for item := range itemCh {
			if e.Err() != nil {
				// Keep draining so that producers never block.
				continue
			}
			if item.b == nil {
				e.Set(w.WriteUnpaired(item.a))
			} else {
				e.Set(w.WritePair(item.a, item.b))
			}
		}
	}()
	emit := func(a, b *sam.Record) { itemCh <- fastqItem{a, b} }

	var (
		shared *bampair.LockedCache
		caches []bampair.Cache
	)
	nCaches := opts.Parallelism
	if opts.Shared {
		nCaches = 1
	}
	for i := 0; i < nCaches; i++ {
		c, err := bampair.NewCache(opts.Cache, emit)
		if err != nil {
			close(itemCh)
			<-writerDone
			for _, o := range outputs {
				o.close(ctx)
			}
			return stats, err
		}
		caches = append(caches, c)
	}
	if opts.Shared {
		shared = bampair.NewLockedCache(caches[0])
		caches[0] = shared
	}
	vlog.Infof("%v: converting with %d workers, %d %v cache(s), batch size %d",
		bamPath, opts.Parallelism, len(caches), opts.Cache.Kind, opts.BatchSize)

	batchCh := make(chan []*sam.Record, opts.Parallelism)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer close(batchCh)
		send := func(batch []*sam.Record) bool {
			select {
			case batchCh <- batch:
				return true
			case <-ctx.Done():
				e.Set(ctx.Err())
				return false
			}
		}
		batch := make([]*sam.Record, 0, opts.BatchSize)
		for {
			r, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				e.Set(errors.E(err, "error reading BAM file:", bamPath))
				return
			}
			stats.Records++
			if !isPrimary(r) {
				stats.Skipped++
				continue
			}
			if r.Flags&sam.Paired == 0 {
				stats.Singles++
				itemCh <- fastqItem{a: r}
				continue
			}
			batch = append(batch, r)
			if len(batch) == opts.BatchSize {
				if !send(batch) {
					return
				}
				batch = make([]*sam.Record, 0, opts.BatchSize)
			}
		}
		if len(batch) > 0 {
			send(batch)
		}
	}()

	err = traverse.Each(opts.Parallelism, func(worker int) error {
		for batch := range batchCh {
			if e.Err() != nil {
				continue
			}
			if shared != nil {
				e.Set(addLocked(shared, batch))
			} else {
				e.Set(add(caches[worker], batch))
			}
		}
		return nil
	})
	e.Set(err)
	<-readerDone

	for _, c := range caches {
		e.Set(c.Flush())
	}
	for i, c := range caches {
		orphans := c.Orphans()
		stats.Orphans += int64(len(orphans))
		for _, r := range orphans {
			itemCh <- fastqItem{a: r}
		}
		if i > 0 {
			e.Set(caches[0].MergeStats(c))
		}
	}
	close(itemCh)
	<-writerDone
	for _, o := range outputs {
		e.Set(o.close(ctx))
	}

	stats.Cache = caches[0].Stats()
	stats.Pairs, _ = w.Counts()
	caches[0].LogStats(bamPath + ": ")
	vlog.Infof("%v: finished converting, %d records, %d skipped, %d pairs, %d singles, %d orphans, error %v",
		bamPath, stats.Records, stats.Skipped, stats.Pairs, stats.Singles, stats.Orphans, e.Err())
	return stats, e.Err()
}

func add(c bampair.Cache, batch []*sam.Record) error {
	for _, r := range batch {
		if err := c.Add(r); err != nil {
			return err
		}
	}
	return nil
}

// addLocked adds the batch under a single lock acquisition.
func addLocked(c *bampair.LockedCache, batch []*sam.Record) error {
	c.Lock()
	defer c.Unlock()
	for _, r := range batch {
		if err := c.AddLocked(r); err != nil {
			return err
		}
	}
	vlog.VI(2).Infof("added batch of %d records", len(batch))
	return nil
}
