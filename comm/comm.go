// Package comm defines the communicator abstraction that the decomposition
// and exchange engine runs its collectives over. The package itself has no
// notion of a transport: it only names the handful of group operations the
// engine needs, so that the engine can be exercised against a deterministic
// in-process implementation (comm/local) in tests and against a real MPI
// deployment (comm/mpi) in production.
package comm

// Communicator is the group of processes a decomposition is built and
// exchanged over. Every rank of the group must enter every method of a
// given Communicator in the same program order; implementations are not
// required to detect out-of-order entry.
type Communicator interface {
	// Rank returns this process's position in the group, 0 <= Rank() < Size().
	Rank() int

	// Size returns the number of processes in the group.
	Size() int

	// AllReduceSumInt64 returns the sum of local across every rank in the
	// group. Every rank must call it with its own local value.
	AllReduceSumInt64(local int64) (int64, error)

	// SendRecv sends send to dest and, in the same call, receives whatever
	// source addressed to this rank with a matching tag. It mirrors
	// MPI_Sendrecv: dest and source need not be the same rank, which is
	// what lets the exchange-plan builder implement its round-robin shift
	// (round s: send to (rank+s) mod P, receive from (rank-s) mod P) as a
	// single call per round. tag correlates a call with its peers' matching
	// calls; the exchange-plan builder makes two calls in round s, tagged
	// 2*s and 2*s+1.
	// dest or source equal to Rank() is a same-rank loopback and does not
	// block on any other rank.
	SendRecv(send []int64, dest, source, tag int) (recv []int64, err error)

	// Alltoallv performs a single collective all-to-all exchange of bytes.
	// send is the concatenation, in ascending peer-rank order, of the bytes
	// destined for each peer; sendCounts[i]/sendDispls[i] give the byte
	// length/offset of the run destined for peer i. recvCounts/recvDispls
	// describe the same layout for the returned buffer, which holds the
	// concatenation of bytes received from each peer.
	Alltoallv(send []byte, sendCounts, sendDispls []int,
		recvCounts, recvDispls []int) (recv []byte, err error)

	// Barrier blocks until every rank in the group has called Barrier.
	Barrier() error
}
