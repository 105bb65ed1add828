package schema

type KafkaOutcome struct {
	PaymentId string `json:"paymentId"`
	Flow      string `json:"flow"`
	Result    string `json:"result"`
	Attempts  int    `json:"attempts"`
	Credited  string `json:"credited,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
