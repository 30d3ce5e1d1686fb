//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/duka-pos/api/internal/domain"
	pconfig "github.com/duka-pos/api/internal/platform/config"
	pfirestore "github.com/duka-pos/api/internal/platform/firestore"
	"github.com/duka-pos/api/internal/repositories"
)

func TestCheckoutRepositoryIntegration(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "checkout-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewCheckoutRepository(provider)
	if err != nil {
		t.Fatalf("new checkout repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}

	const shopID = "shop-integ"
	now := time.Now().UTC().Truncate(time.Second)

	seedProduct := func(t *testing.T, productID string, quantity int) {
		t.Helper()
		doc := productDocument{
			Name:       "Seed " + productID,
			SalesPrice: 10,
			Quantity:   quantity,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		ref := client.Collection(shopsCollection).Doc(shopID).Collection(productsCollection).Doc(productID)
		if _, err := ref.Set(ctx, doc); err != nil {
			t.Fatalf("seed product %s: %v", productID, err)
		}
	}

	productQuantity := func(t *testing.T, productID string) int {
		t.Helper()
		snap, err := client.Collection(shopsCollection).Doc(shopID).Collection(productsCollection).Doc(productID).Get(ctx)
		if err != nil {
			t.Fatalf("read product %s: %v", productID, err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			t.Fatalf("decode product %s: %v", productID, err)
		}
		return doc.Quantity
	}

	ledgerExists := func(t *testing.T, txnID string) bool {
		t.Helper()
		_, err := client.Collection(shopsCollection).Doc(shopID).Collection(transactionsCollection).Doc(txnID).Get(ctx)
		if err == nil {
			return true
		}
		if status.Code(err) == codes.NotFound {
			return false
		}
		t.Fatalf("read transaction %s: %v", txnID, err)
		return false
	}

	saleFor := func(txnID, productID string, quantity int) domain.Transaction {
		return domain.Transaction{
			ID:            txnID,
			ShopID:        shopID,
			Date:          now,
			TotalAmount:   float64(quantity) * 10,
			PaymentMethod: domain.PaymentCash,
			SellerID:      "seller-1",
			CustomerName:  domain.WalkInCustomerName,
			Items: []domain.TransactionLine{
				{ProductID: productID, ProductName: "Seed " + productID, Quantity: quantity, Price: 10},
			},
			AmountPaid: float64(quantity) * 10,
		}
	}

	t.Run("commit decrements stock and writes ledger", func(t *testing.T) {
		seedProduct(t, "prod-ok", 5)

		result, err := repo.Commit(ctx, repositories.CheckoutCommitRequest{
			ShopID:      shopID,
			Transaction: saleFor("txn-ok", "prod-ok", 3),
		})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		if result.Transaction.ID != "txn-ok" {
			t.Fatalf("unexpected transaction id %s", result.Transaction.ID)
		}
		if got := productQuantity(t, "prod-ok"); got != 2 {
			t.Fatalf("expected quantity 2 after commit, got %d", got)
		}
		if !ledgerExists(t, "txn-ok") {
			t.Fatal("expected ledger document after commit")
		}
	})

	t.Run("shortfall aborts without partial writes", func(t *testing.T) {
		seedProduct(t, "prod-short", 2)

		_, err := repo.Commit(ctx, repositories.CheckoutCommitRequest{
			ShopID:      shopID,
			Transaction: saleFor("txn-short", "prod-short", 3),
		})
		var checkoutErr *repositories.CheckoutError
		if !errors.As(err, &checkoutErr) || checkoutErr.Code != repositories.CheckoutErrorInsufficientStock {
			t.Fatalf("expected insufficient stock error, got %v", err)
		}
		if checkoutErr.ProductID != "prod-short" || checkoutErr.Requested != 3 || checkoutErr.Available != 2 {
			t.Fatalf("shortfall details wrong: %+v", checkoutErr)
		}
		if got := productQuantity(t, "prod-short"); got != 2 {
			t.Fatalf("aborted commit must leave stock untouched, got %d", got)
		}
		if ledgerExists(t, "txn-short") {
			t.Fatal("aborted commit must not write a ledger document")
		}
	})

	t.Run("concurrent commits sell the last unit once", func(t *testing.T) {
		seedProduct(t, "prod-race", 1)

		results := make([]error, 2)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = repo.Commit(ctx, repositories.CheckoutCommitRequest{
					ShopID:      shopID,
					Transaction: saleFor(fmt.Sprintf("txn-race-%d", i), "prod-race", 1),
				})
			}(i)
		}
		wg.Wait()

		successes := 0
		for i, err := range results {
			if err == nil {
				successes++
				continue
			}
			var checkoutErr *repositories.CheckoutError
			if !errors.As(err, &checkoutErr) || checkoutErr.Code != repositories.CheckoutErrorInsufficientStock {
				t.Fatalf("commit %d: expected insufficient stock error, got %v", i, err)
			}
		}
		if successes != 1 {
			t.Fatalf("expected exactly one winning commit, got %d", successes)
		}
		if got := productQuantity(t, "prod-race"); got != 0 {
			t.Fatalf("expected quantity 0 after race, got %d", got)
		}
		wins := 0
		for i := range results {
			if ledgerExists(t, fmt.Sprintf("txn-race-%d", i)) {
				wins++
			}
		}
		if wins != 1 {
			t.Fatalf("expected exactly one ledger document, got %d", wins)
		}
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
