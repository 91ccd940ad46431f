package rabbitmq

import "testing"

func TestJobMessage_RoundTrip(t *testing.T) {
	body, err := EncodeJob("01HZX")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(body) != `{"job_id":"01HZX"}` {
		t.Fatalf("unexpected body %s", body)
	}
	id, err := DecodeJob(body)
	if err != nil || id != "01HZX" {
		t.Fatalf("decode: id=%q err=%v", id, err)
	}
}

func TestDecodeJob_Rejects(t *testing.T) {
	for _, body := range []string{`nope`, `{}`, `{"job_id":""}`} {
		if _, err := DecodeJob([]byte(body)); err == nil {
			t.Fatalf("expected error for %s", body)
		}
	}
}

func TestClampConcurrency(t *testing.T) {
	cases := map[int]int{-1: 2, 0: 2, 1: 1, 8: 8, 50: 50, 51: 50}
	for in, want := range cases {
		if got := ClampConcurrency(in); got != want {
			t.Fatalf("ClampConcurrency(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestDeadLetterQueue(t *testing.T) {
	if got := DeadLetterQueue("chat_jobs"); got != "chat_jobs.dlq" {
		t.Fatalf("unexpected dlq %q", got)
	}
}
