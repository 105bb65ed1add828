package schema

var (
	// bucket
	LockoutBucket = "lockout-bucket" // key: paymentId, val: json.marshal(Lockout)
	PendingBucket = "pending-bucket" // key: paymentId, val: json.marshal(Pending)
)
