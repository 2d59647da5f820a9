package wechat

import "testing"

func TestSignatureKnownVector(t *testing.T) {
	// token="t" timestamp="1" nonce="2" 排序后为 "1","2","t"
	// sha1("12t")
	const want = "725669708c14d5b08cc886e941be604363f42cf5"

	if got := Signature("t", "1", "2"); got != want {
		t.Errorf("Signature = %s, want %s", got, want)
	}
	if !VerifySignature("t", "1", "2", want) {
		t.Error("VerifySignature rejected a valid signature")
	}
	if VerifySignature("t", "1", "2", "deadbeef") {
		t.Error("VerifySignature accepted an invalid signature")
	}
}

func TestSignatureOrderIndependent(t *testing.T) {
	// 三个输入两两交换不影响结果
	inputs := [][3]string{
		{"token", "1700000000", "nonce"},
		{"nonce", "token", "1700000000"},
		{"1700000000", "nonce", "token"},
	}

	want := Signature(inputs[0][0], inputs[0][1], inputs[0][2])
	for _, in := range inputs[1:] {
		if got := Signature(in[0], in[1], in[2]); got != want {
			t.Errorf("Signature(%v) = %s, want %s", in, got, want)
		}
	}
}
