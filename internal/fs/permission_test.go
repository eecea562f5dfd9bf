package fs

import (
	"errors"
	"testing"

	"github.com/ajaxzhan/simos/pkg/types"
)

var (
	testRoot  = &types.User{Username: "root", UID: 0, GID: 0, HomeDir: "/root"}
	testAlice = &types.User{Username: "alice", UID: 1000, GID: 1000, HomeDir: "/home/alice", Groups: []string{"staff"}}
	testBob   = &types.User{Username: "bob", UID: 1001, GID: 1001, HomeDir: "/home/bob"}
	testCarol = &types.User{Username: "carol", UID: 1002, GID: 1002, HomeDir: "/home/carol", Groups: []string{"staff"}}
)

func TestAllowed_Triplets(t *testing.T) {
	node := &types.Node{Kind: types.KindFile, Owner: "alice", Group: "staff", Permissions: "-rw-r-----"}

	tests := []struct {
		name     string
		actor    *types.User
		op       types.Operation
		expected bool
	}{
		{"owner read", testAlice, types.OpRead, true},
		{"owner write", testAlice, types.OpWrite, true},
		{"owner execute", testAlice, types.OpExecute, false},
		{"group read", testCarol, types.OpRead, true},
		{"group write", testCarol, types.OpWrite, false},
		{"other read", testBob, types.OpRead, false},
		{"root write", testRoot, types.OpWrite, true},
		{"root execute", testRoot, types.OpExecute, true},
		{"nil actor", nil, types.OpRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allowed(node, tt.actor, tt.op)
			if got != tt.expected {
				t.Errorf("Allowed(%s) = %v, want %v", tt.op, got, tt.expected)
			}
		})
	}
}

func TestAllowed_OwnerTripletOnly(t *testing.T) {
	// The owner is judged by the owner triplet even when other is wider.
	node := &types.Node{Kind: types.KindFile, Owner: "alice", Permissions: "----rw-rw-"}
	if Allowed(node, testAlice, types.OpRead) {
		t.Error("owner should be denied by the owner triplet")
	}
	if !Allowed(node, testBob, types.OpRead) {
		t.Error("other should be allowed by the other triplet")
	}
}

func TestAllowed_GroupByGID(t *testing.T) {
	node := &types.Node{Kind: types.KindFile, Owner: "root", Group: "1001", Permissions: "-rw-rw----"}
	if !Allowed(node, testBob, types.OpWrite) {
		t.Error("primary gid should select the group triplet")
	}
	if Allowed(node, testAlice, types.OpWrite) {
		t.Error("non-member should be denied")
	}
}

func TestAllowed_StickyOverlay(t *testing.T) {
	tests := []struct {
		perms    string
		expected bool
	}{
		{"drwxrwxrwt", true},
		{"drwxrwxrwT", false},
		{"drwxrwxrwx", true},
		{"drwxrwxrw-", false},
	}

	for _, tt := range tests {
		t.Run(tt.perms, func(t *testing.T) {
			node := &types.Node{Kind: types.KindDirectory, Owner: "root", Permissions: tt.perms}
			if got := Allowed(node, testBob, types.OpExecute); got != tt.expected {
				t.Errorf("Allowed(execute) on %s = %v, want %v", tt.perms, got, tt.expected)
			}
		})
	}
}

func TestAllowed_DefaultPermissions(t *testing.T) {
	dir := &types.Node{Kind: types.KindDirectory, Owner: "root"}
	file := &types.Node{Kind: types.KindFile, Owner: "root"}

	if !Allowed(dir, testBob, types.OpExecute) {
		t.Error("default directory should be searchable by others")
	}
	if Allowed(dir, testBob, types.OpWrite) {
		t.Error("default directory should not be writable by others")
	}
	if !Allowed(file, testBob, types.OpRead) || Allowed(file, testBob, types.OpWrite) {
		t.Error("default file should be read-only for others")
	}
}

func TestCheck_ReturnsPermissionError(t *testing.T) {
	node := &types.Node{Kind: types.KindFile, Owner: "alice", Permissions: "-rw-------"}
	err := CheckRead("/home/alice/secret", node, testBob)
	if !errors.Is(err, types.ErrPermissionDenied) {
		t.Fatalf("CheckRead() error = %v, want permission denied", err)
	}
	var pe *types.PermissionError
	if !errors.As(err, &pe) {
		t.Fatalf("error should be *PermissionError, got %T", err)
	}
	if pe.Username != "bob" || pe.Path != "/home/alice/secret" {
		t.Errorf("PermissionError = %+v", pe)
	}
	if err := CheckRead("/home/alice/secret", node, testAlice); err != nil {
		t.Errorf("owner CheckRead() error = %v", err)
	}
}

func TestCheckSticky(t *testing.T) {
	tmp := &types.Node{Kind: types.KindDirectory, Owner: "root", Permissions: TmpPermissions}
	bobs := &types.Node{Kind: types.KindFile, Owner: "bob"}

	tests := []struct {
		name    string
		actor   *types.User
		wantErr bool
	}{
		{"entry owner", testBob, false},
		{"stranger", testAlice, true},
		{"root", testRoot, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSticky("/tmp/b", tmp, bobs, tt.actor)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckSticky() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var pe *types.PermissionError
				if !errors.As(err, &pe) || !pe.Sticky {
					t.Errorf("expected sticky PermissionError, got %v", err)
				}
			}
		})
	}

	plain := &types.Node{Kind: types.KindDirectory, Owner: "root", Permissions: "drwxrwxrwx"}
	if err := CheckSticky("/shared/b", plain, bobs, testAlice); err != nil {
		t.Errorf("non-sticky directory should not restrict: %v", err)
	}
}
