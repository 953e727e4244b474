package rabbitmq

import "testing"

func TestJobMessageRoundTrip(t *testing.T) {
	body, err := EncodeJob("01JOBID")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(body) != `{"job_id":"01JOBID"}` {
		t.Fatalf("unexpected body %s", body)
	}

	m, err := DecodeJob([]byte(`{"job_id":"abc"}`))
	if err != nil || m.JobID != "abc" {
		t.Fatalf("decode: %+v %v", m, err)
	}
	if _, err := DecodeJob([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
