package smtp

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
)

// fakeRelay is a minimal SMTP server that accepts every command and records
// the DATA of each message.
type fakeRelay struct {
	ln net.Listener
	wg sync.WaitGroup

	mu         sync.Mutex
	messages   []string
	rcpts      [][]string
	conns      int
	rejectData bool
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	r := &fakeRelay{ln: ln}
	r.wg.Add(1)
	go r.accept()
	t.Cleanup(func() {
		_ = ln.Close()
		r.wg.Wait()
	})
	return r
}

func (r *fakeRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) config() Config {
	return Config{
		Host:       "127.0.0.1",
		Port:       r.port(),
		From:       "noreply@example.com",
		Encryption: EncryptionNone,
	}
}

func (r *fakeRelay) accept() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		r.mu.Lock()
		r.conns++
		r.mu.Unlock()

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.serve(conn)
		}()
	}
}

func (r *fakeRelay) serve(conn net.Conn) {
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	reply := func(lines ...string) {
		for _, l := range lines {
			_, _ = rw.WriteString(l + "\r\n")
		}
		_ = rw.Flush()
	}

	reply("220 fake.relay ESMTP")
	var rcpts []string
	for {
		line, err := rw.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case strings.HasPrefix(cmd, "EHLO"):
			reply("250-fake.relay", "250 8BITMIME")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			rcpts = nil
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			rcpts = append(rcpts, strings.TrimSpace(line[len("RCPT TO:"):]))
			reply("250 OK")
		case cmd == "DATA":
			reply("354 end with <CRLF>.<CRLF>")
			var body strings.Builder
			for {
				l, err := rw.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			r.mu.Lock()
			reject := r.rejectData
			if !reject {
				r.messages = append(r.messages, body.String())
				r.rcpts = append(r.rcpts, rcpts)
			}
			r.mu.Unlock()
			if reject {
				reply("554 5.7.1 rejected")
			} else {
				reply("250 2.0.0 queued")
			}
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func (r *fakeRelay) snapshot() (messages []string, rcpts [][]string, conns int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...), append([][]string(nil), r.rcpts...), r.conns
}

func (r *fakeRelay) setReject(v bool) {
	r.mu.Lock()
	r.rejectData = v
	r.mu.Unlock()
}

