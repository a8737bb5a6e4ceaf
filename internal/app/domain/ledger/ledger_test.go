package ledger

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseAccount(t *testing.T) {
	sub, err := ParseSubaccount("0x01ff")
	if err != nil {
		t.Fatalf("parse subaccount: %v", err)
	}
	if sub[30] != 0x01 || sub[31] != 0xff || sub[0] != 0 {
		t.Fatalf("subaccount not left padded: %s", sub)
	}

	tests := []struct {
		in      string
		want    Account
		wantErr bool
	}{
		{in: "alice", want: NewAccount("alice")},
		{in: " alice.01ff ", want: Account{Owner: "alice", Subaccount: sub}},
		{in: "", wantErr: true},
		{in: ".01", wantErr: true},
		{in: "alice.zz", want: NewAccount("alice.zz")},
		{in: "wallet.backend", want: NewAccount("wallet.backend")},
		{in: "svc.ab." + Subaccount{}.String(), want: NewAccount("svc.ab")},
		{in: "svc.ab.01ff", want: Account{Owner: "svc.ab", Subaccount: sub}},
	}
	for _, tc := range tests {
		got, err := ParseAccount(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseAccount(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseAccount(%q) = %v, %v", tc.in, got, err)
		}
		back, err := ParseAccount(got.String())
		if err != nil || back != got {
			t.Fatalf("String round trip failed for %q", tc.in)
		}
	}
}

func TestDottedOwnersRoundTrip(t *testing.T) {
	var sub Subaccount
	sub[31] = 0xab
	accounts := []Account{
		NewAccount("svc.ab"),
		NewAccount("wallet.backend"),
		NewAccount("svc." + sub.String()),
		{Owner: "svc", Subaccount: sub},
		{Owner: "svc.ab", Subaccount: sub},
		{Owner: "a.b.c", Subaccount: sub},
	}
	seen := make(map[string]Account, len(accounts))
	for _, acct := range accounts {
		text := acct.String()
		if prev, ok := seen[text]; ok {
			t.Fatalf("%+v and %+v share text form %q", prev, acct, text)
		}
		seen[text] = acct
		back, err := ParseAccount(text)
		if err != nil || back != acct {
			t.Fatalf("ParseAccount(%q) = %+v, %v; want %+v", text, back, err, acct)
		}
	}

	state := FaucetState{ClaimedByAccount: make(map[Account]uint64)}
	for i, acct := range accounts {
		state.ClaimedByAccount[acct] = uint64(i + 1)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal faucet state: %v", err)
	}
	var decoded FaucetState
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal faucet state: %v", err)
	}
	for i, acct := range accounts {
		if decoded.ClaimedByAccount[acct] != uint64(i+1) {
			t.Fatalf("claim counter for %+v = %d", acct, decoded.ClaimedByAccount[acct])
		}
	}
}

func TestAccountJSONForms(t *testing.T) {
	var fromText Account
	if err := json.Unmarshal([]byte(`"bob"`), &fromText); err != nil || fromText != NewAccount("bob") {
		t.Fatalf("text form: %v %v", fromText, err)
	}
	var fromObject Account
	if err := json.Unmarshal([]byte(`{"owner":"bob","subaccount":"02"}`), &fromObject); err != nil {
		t.Fatalf("object form: %v", err)
	}
	if fromObject.Owner != "bob" || fromObject.Subaccount[31] != 2 {
		t.Fatalf("unexpected account %+v", fromObject)
	}
	out, err := json.Marshal(NewAccount("bob"))
	if err != nil || string(out) != `{"owner":"bob"}` {
		t.Fatalf("marshal default account: %s %v", out, err)
	}

	balances := map[Account]uint64{fromObject: 5}
	raw, err := json.Marshal(balances)
	if err != nil {
		t.Fatalf("marshal map: %v", err)
	}
	var decoded map[Account]uint64
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded[fromObject] != 5 {
		t.Fatalf("map key round trip: %v %v", decoded, err)
	}
}

func TestTransactionJSONKeepsOperationKind(t *testing.T) {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ops := []Operation{
		Mint{To: NewAccount("a"), Amount: 1},
		Burn{From: NewAccount("a"), Amount: 2},
		Transfer{From: NewAccount("a"), To: NewAccount("b"), Amount: 3, Fee: 1},
		Earn{To: NewAccount("a"), EarningType: EarningReferralBonus, Amount: 4},
		Spend{From: NewAccount("a"), SpendingType: SpendingTelemedicine, Amount: 5},
		Stake{From: NewAccount("a"), Amount: 6, LockPeriod: time.Hour},
		Unstake{To: NewAccount("a"), Amount: 6, Reward: 1},
	}
	for i, op := range ops {
		tx := Transaction{Index: uint64(i), Timestamp: created, Operation: op, Memo: []byte("m"), CreatedAt: &created}
		raw, err := json.Marshal(tx)
		if err != nil {
			t.Fatalf("marshal %s: %v", op.Kind(), err)
		}
		var back Transaction
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", op.Kind(), err)
		}
		if back.Operation != op || back.Index != tx.Index || string(back.Memo) != "m" || !back.CreatedAt.Equal(created) {
			t.Fatalf("round trip changed %s: %+v", op.Kind(), back)
		}
	}

	if _, err := DecodeOperation("teleport", []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if _, err := json.Marshal(Transaction{}); err == nil {
		t.Fatalf("expected error for missing operation")
	}
}

func TestIsFaucet(t *testing.T) {
	faucet := Transaction{Operation: Mint{To: NewAccount("a"), Amount: 1}, Memo: []byte(MemoFaucet)}
	if !faucet.IsFaucet() {
		t.Fatalf("faucet mint not detected")
	}
	earn := Transaction{Operation: Earn{To: NewAccount("a"), Amount: 1}, Memo: []byte(MemoFaucet)}
	if earn.IsFaucet() {
		t.Fatalf("earn flagged as faucet")
	}
}

func TestEconomyCategories(t *testing.T) {
	if len(EarningTypes) != 7 || len(SpendingTypes) != 6 {
		t.Fatalf("unexpected category counts %d/%d", len(EarningTypes), len(SpendingTypes))
	}
	if et, ok := ParseEarningType(" Referral_Bonus "); !ok || et != EarningReferralBonus {
		t.Fatalf("parse earning type: %q %v", et, ok)
	}
	if _, ok := ParseSpendingType("lottery"); ok {
		t.Fatalf("unknown spending type accepted")
	}
	for _, et := range EarningTypes {
		if et.Description() == string(et) {
			t.Fatalf("missing description for %s", et)
		}
	}
}

func TestFaucetStateClone(t *testing.T) {
	orig := FaucetState{ClaimedByAccount: map[Account]uint64{NewAccount("a"): 1}}
	cp := orig.Clone()
	cp.ClaimedByAccount[NewAccount("a")] = 9
	if orig.ClaimedByAccount[NewAccount("a")] != 1 {
		t.Fatalf("clone shares the account map")
	}
}

func TestStakeUnlock(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := StakeInfo{StakedAt: at, LockPeriod: 48 * time.Hour}
	if st.Unlockable(at.Add(47 * time.Hour)) {
		t.Fatalf("unlocked early")
	}
	if !st.Unlockable(st.UnlocksAt()) {
		t.Fatalf("not unlockable at the boundary")
	}
}
