/*Package bampair pairs each read with its mate while streaming over
  BAM records in an arbitrary order, using a bounded amount of memory
  no matter how far apart the two mates appear in the stream.

  A Cache receives records through Add().  When Add() sees the mate of
  a record it already holds, it hands both records to the PairFunc
  supplied at construction and forgets them.  After the last Add(),
  the user calls Flush() exactly once.  Flush() pairs up whatever the
  cache still holds, and afterwards Len() and Orphans() report only
  the reads whose mate never arrived.

  Two implementations exist.  EvictingCache keeps at most one record
  per hash bucket; a collision moves the resident record to an
  overflow list whose members are only paired during Flush().  Memory
  is bounded by the bucket table plus the overflow list, and the
  overflow list stays small as long as the table grows with the
  number of residents.  ExactCache keeps every unmatched record in a
  map and so pairs every mate as soon as it arrives.

  Caches are not thread-safe.  Workers that share a cache must go
  through a LockedCache, which serializes every call and lets callers
  add a batch of records under a single Lock()/Unlock().  The PairFunc
  runs with the lock held, so it should only hand the pair off (e.g.,
  send it on a buffered channel).  Alternatively each worker can own
  a private cache, and MergeStats() combines the counters afterwards.
  Records are never moved between private caches, so a pair whose
  mates were fed to two different caches shows up as one orphan in
  each of them.

  The cache does not deduplicate.  Secondary and supplementary
  alignments must be filtered out before they reach Add(), otherwise
  they are paired with whichever record of the same name they meet
  first.
*/
package bampair
