package events_test

import (
	"testing"

	"github.com/iprotocol/blockchain/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out ledger events.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen two receivers are registered.", testID)
		{
			evts := events.New("viewer:")

			a := evts.Acquire("a")
			b := evts.Acquire("b")

			evts.Send("state: internal detail")
			evts.Send("viewer: block mined")

			for _, ch := range []<-chan string{a, b} {
				select {
				case msg := <-ch:
					if msg != "viewer: block mined" {
						t.Fatalf("\t%s\tTest %d:\tShould only receive viewer events, got %q.", failed, testID, msg)
					}
				default:
					t.Fatalf("\t%s\tTest %d:\tShould receive the event.", failed, testID)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould receive only viewer events.", success, testID)

			if err := evts.Release("a"); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to release: %v", failed, testID, err)
			}
			if _, open := <-a; open {
				t.Fatalf("\t%s\tTest %d:\tShould close the released channel.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close the released channel.", success, testID)

			if err := evts.Release("a"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to release twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to release twice.", success, testID)

			for i := 0; i < 500; i++ {
				evts.Send("viewer: flood")
			}
			t.Logf("\t%s\tTest %d:\tShould not block on a full receiver.", success, testID)

			evts.Shutdown()
			if evts.Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould remove every receiver on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove every receiver on shutdown.", success, testID)
		}
	}
}
