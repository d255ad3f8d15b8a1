package chunkid

import "testing"

func TestClassifyCopy(t *testing.T) {
	id := ID(0x00123456789ABCDE)
	kind, part := Classify(id)
	if kind != KindCopy || part != 0 {
		t.Fatalf("Classify(%#x) = (%v, %d), want (KindCopy, 0)", id, kind, part)
	}
}

func TestClassifyEC4DataAndParity(t *testing.T) {
	base := ID(0x00000000000000AA)
	for i := 0; i < 4; i++ {
		id := ECPart(base, 4, i)
		kind, part := Classify(id)
		if kind != KindEC4 || part != i {
			t.Fatalf("Classify(ECPart(base,4,%d)) = (%v, %d), want (KindEC4, %d)", i, kind, part, i)
		}
		if IsECParity(id) {
			t.Fatalf("IsECParity(data part %d) = true, want false", i)
		}
	}
	parity := ECPart(base, 4, 4)
	kind, part := Classify(parity)
	if kind != KindEC4 || part != 4 {
		t.Fatalf("Classify(parity) = (%v, %d), want (KindEC4, 4)", kind, part)
	}
	if !IsECParity(parity) {
		t.Fatal("IsECParity(parity) = false, want true")
	}
}

func TestClassifyEC8DataAndParity(t *testing.T) {
	base := ID(0x00000000000000BB)
	for i := 0; i < 8; i++ {
		id := ECPart(base, 8, i)
		kind, part := Classify(id)
		if kind != KindEC8 || part != i {
			t.Fatalf("Classify(ECPart(base,8,%d)) = (%v, %d), want (KindEC8, %d)", i, kind, part, i)
		}
	}
	parity := ECPart(base, 8, 8)
	if !IsECParity(parity) {
		t.Fatal("IsECParity(8-part parity) = false, want true")
	}
}

func TestECPartSharesBaseWithOriginal(t *testing.T) {
	base := ID(0x00DEADBEEFCAFE00)
	part := ECPart(base, 4, 2)
	if Base(part) != Base(base) {
		t.Fatalf("Base(part) = %#x, want %#x", Base(part), Base(base))
	}
}

func TestECPartInvalidNumPartsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("ECPart with numParts=3 did not panic")
		}
	}()
	ECPart(ID(1), 3, 0)
}

func TestBucketSharesAcrossECVariants(t *testing.T) {
	base := ID(0x00000000000000AA)
	data := ECPart(base, 4, 0)
	parity := ECPart(base, 4, 4)
	if Bucket(base) != Bucket(data) || Bucket(data) != Bucket(parity) {
		t.Fatalf("Bucket mismatch: base=%d data=%d parity=%d", Bucket(base), Bucket(data), Bucket(parity))
	}
}

func TestWithTagPreservesLowBits(t *testing.T) {
	base := ID(0x00ABCDEF12345678)
	tagged := WithTag(base, 0x20)
	if Base(tagged) != Base(base) {
		t.Fatalf("Base(tagged) = %#x, want %#x", Base(tagged), Base(base))
	}
	if tag(tagged) != 0x20 {
		t.Fatalf("tag(tagged) = %#x, want 0x20", tag(tagged))
	}
}
