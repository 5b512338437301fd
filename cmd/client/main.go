package main

import (
	"context"
	"fmt"
	"log"

	archivemock "github.com/veilbase/sealstore/internal/archive/mock"
	"github.com/veilbase/sealstore/internal/audit"
	oraclemock "github.com/veilbase/sealstore/internal/oracle/mock"
	"github.com/veilbase/sealstore/internal/vault"
)

// Example usage of the SealedVault with the mock oracle and archive

// This example walks the full publication flow: request randomness, drive
// fulfillment explicitly on the mock, publish a batch blended with the
// entropy, then read the published values back and reveal them.
func main() {
	ctx := context.Background()
	oracle := oraclemock.NewOracle("oracle-local", 25)
	archive := archivemock.NewArchive()

	v, err := vault.NewSealedVault(oracle, archive, vault.DefaultConfig(), "client1", nil)
	if err != nil {
		log.Fatalf("Failed to create vault: %v", err)
	}
	defer v.Close()

	journal := audit.NewJournal()
	v.RegisterListener(journal.Listener())

	// Plain publication, no randomness
	if err := v.Publish(ctx, 7, []byte("plain value")); err != nil {
		log.Fatalf("Failed to publish: %v", err)
	}

	// Paid randomness request, fulfilled out-of-band
	requestID, err := v.RequestRandomness(ctx, "demo-batch", 25)
	if err != nil {
		log.Fatalf("Failed to request randomness: %v", err)
	}
	oracle.Fulfill(requestID, []byte{0xA5, 0x5A})

	keys := []vault.Key{1, 2, 3}
	values := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	if err := v.PublishBatchWithRandomness(ctx, keys, values, requestID); err != nil {
		log.Fatalf("Failed to publish batch: %v", err)
	}

	for _, key := range keys {
		ct, err := v.GetValue(key)
		if err != nil {
			log.Fatalf("Failed to read key %d: %v", key, err)
		}
		revealed, err := ct.Reveal()
		if err != nil {
			log.Fatalf("Failed to reveal key %d: %v", key, err)
		}
		fmt.Printf("key %d published form: %x\n", key, revealed)
	}

	fmt.Printf("total values: %d\n", v.TotalValues())
	fmt.Printf("oracle: %s\n", v.OracleAddress())

	filter, err := audit.ParseFilter("type=batch_stored")
	if err != nil {
		log.Fatalf("Failed to parse filter: %v", err)
	}
	for _, ev := range journal.Query(filter) {
		fmt.Printf("event %s: %s keys=%v request=%d\n", ev.ID, ev.Type, ev.Keys, ev.RequestID)
	}
}
