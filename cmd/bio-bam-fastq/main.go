/*Command bio-bam-fastq converts a BAM file into paired FASTQ files.
  Each primary read is matched with its mate by read name, no matter
  how far apart the two records are in the BAM file, and the pair is
  written to the R1 and R2 outputs.  Reads without a mate can be
  written to a third file.  Outputs ending in .gz are gzip-compressed.

  Usage: bio-bam-fastq --bam=foo.bam --r1=foo_R1.fastq.gz --r2=foo_R2.fastq.gz
*/
package main

import (
	"flag"
	"runtime"
	"strings"

	"github.com/grailbio/bamtofastq/encoding/bampair"
	"github.com/grailbio/bamtofastq/encoding/converter"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	bamFile       = flag.String("bam", "", "Input BAM filename")
	r1File        = flag.String("r1", "", "Output FASTQ filename for the first read of each pair")
	r2File        = flag.String("r2", "", "Output FASTQ filename for the second read of each pair")
	unpairedFile  = flag.String("unpaired", "", "Output FASTQ filename for reads without a mate. If empty, such reads are dropped")
	cacheKind     = flag.String("cache", "evicting", "Mate cache implementation, either 'evicting' (bounded memory) or 'exact' (one map entry per waiting read)")
	capacity      = flag.Int("capacity", bampair.DefaultCapacity, "Initial number of buckets of the evicting cache")
	growable      = flag.Bool("growable", true, "Let the evicting cache grow when its load factor exceeds --max-load-factor")
	maxLoadFactor = flag.Float64("max-load-factor", bampair.DefaultMaxLoadFactor, "Load factor above which the evicting cache grows")
	growthFactor  = flag.Int("growth-factor", bampair.DefaultGrowthFactor, "Capacity multiplier applied when the evicting cache grows")
	hashName      = flag.String("hash", "seahash", "Read name hash used by the evicting cache: seahash, farm or highway")
	shared        = flag.Bool("shared", true, "Share one locked cache between all workers. If false, each worker has a private cache, and mates handed to different workers are reported as unpaired")
	parallelism   = flag.Int("parallelism", runtime.NumCPU(), "Number of workers feeding the cache")
	batchSize     = flag.Int("batch-size", converter.DefaultBatchSize, "Number of records handed to a worker at once")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		a := flag.Args()
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(a[len(a)-flag.NArg():], " "))
	}
	if *bamFile == "" || *r1File == "" || *r2File == "" {
		log.Fatalf("--bam, --r1 and --r2 must be set")
	}

	kind, err := bampair.ParseKind(*cacheKind)
	if err != nil {
		log.Fatalf("%v", err)
	}
	hash, err := bampair.HashByName(*hashName)
	if err != nil {
		log.Fatalf("%v", err)
	}
	opts := converter.FASTQOpts{
		Parallelism: *parallelism,
		BatchSize:   *batchSize,
		Shared:      *shared,
		Unpaired:    *unpairedFile,
		Cache: bampair.Opts{
			Kind:          kind,
			Capacity:      *capacity,
			Growable:      *growable,
			MaxLoadFactor: *maxLoadFactor,
			GrowthFactor:  *growthFactor,
			Hash:          hash,
		},
	}

	ctx := vcontext.Background()
	stats, err := converter.ConvertToFASTQ(ctx, *bamFile, *r1File, *r2File, opts)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if stats.Orphans > 0 {
		log.Printf("%d paired reads had no mate", stats.Orphans)
	}
	log.Debug.Printf("exiting")
}
