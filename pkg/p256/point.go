// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dcrypto.
//
// go-dcrypto is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package p256

import (
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// point is a projective (X:Y:Z) point with coordinates in the Montgomery
// domain. The identity is (0:1:0).
type point struct {
	x, y, z Int
}

var (
	montB Int
	montG point
)

func init() {
	fieldP.toMont(&montB, &B)
	fieldP.toMont(&montG.x, &Gx)
	fieldP.toMont(&montG.y, &Gy)
	montG.z = fieldP.one
}

func identity() point {
	return point{y: fieldP.one}
}

// add sets q = p1 + p2 using the complete addition law for a = -3
// (Renes, Costello, Batina 2015, algorithm 4). Handles doubling and the
// identity without branches.
func (q *point) add(p1, p2 *point) {
	f := fieldP
	var t0, t1, t2, t3, t4, x3, y3, z3 Int

	f.mul(&t0, &p1.x, &p2.x)
	f.mul(&t1, &p1.y, &p2.y)
	f.mul(&t2, &p1.z, &p2.z)
	f.add(&t3, &p1.x, &p1.y)
	f.add(&t4, &p2.x, &p2.y)
	f.mul(&t3, &t3, &t4)
	f.add(&t4, &t0, &t1)
	f.sub(&t3, &t3, &t4)
	f.add(&t4, &p1.y, &p1.z)
	f.add(&x3, &p2.y, &p2.z)
	f.mul(&t4, &t4, &x3)
	f.add(&x3, &t1, &t2)
	f.sub(&t4, &t4, &x3)
	f.add(&x3, &p1.x, &p1.z)
	f.add(&y3, &p2.x, &p2.z)
	f.mul(&x3, &x3, &y3)
	f.add(&y3, &t0, &t2)
	f.sub(&y3, &x3, &y3)
	f.mul(&z3, &montB, &t2)
	f.sub(&x3, &y3, &z3)
	f.add(&z3, &x3, &x3)
	f.add(&x3, &x3, &z3)
	f.sub(&z3, &t1, &x3)
	f.add(&x3, &t1, &x3)
	f.mul(&y3, &montB, &y3)
	f.add(&t1, &t2, &t2)
	f.add(&t2, &t1, &t2)
	f.sub(&y3, &y3, &t2)
	f.sub(&y3, &y3, &t0)
	f.add(&t1, &y3, &y3)
	f.add(&y3, &t1, &y3)
	f.add(&t1, &t0, &t0)
	f.add(&t0, &t1, &t0)
	f.sub(&t0, &t0, &t2)
	f.mul(&t1, &t4, &y3)
	f.mul(&t2, &t0, &y3)
	f.mul(&y3, &x3, &z3)
	f.add(&y3, &y3, &t2)
	f.mul(&x3, &t3, &x3)
	f.sub(&x3, &x3, &t1)
	f.mul(&z3, &t4, &z3)
	f.mul(&t1, &t3, &t0)
	f.add(&z3, &z3, &t1)

	q.x, q.y, q.z = x3, y3, z3
}

// double sets q = 2p (Renes, Costello, Batina 2015, algorithm 6).
func (q *point) double(p *point) {
	f := fieldP
	var t0, t1, t2, t3, x3, y3, z3 Int

	f.mul(&t0, &p.x, &p.x)
	f.mul(&t1, &p.y, &p.y)
	f.mul(&t2, &p.z, &p.z)
	f.mul(&t3, &p.x, &p.y)
	f.add(&t3, &t3, &t3)
	f.mul(&z3, &p.x, &p.z)
	f.add(&z3, &z3, &z3)
	f.mul(&y3, &montB, &t2)
	f.sub(&y3, &y3, &z3)
	f.add(&x3, &y3, &y3)
	f.add(&y3, &x3, &y3)
	f.sub(&x3, &t1, &y3)
	f.add(&y3, &t1, &y3)
	f.mul(&y3, &x3, &y3)
	f.mul(&x3, &x3, &t3)
	f.add(&t3, &t2, &t2)
	f.add(&t2, &t2, &t3)
	f.mul(&z3, &montB, &z3)
	f.sub(&z3, &z3, &t2)
	f.sub(&z3, &z3, &t0)
	f.add(&t3, &z3, &z3)
	f.add(&z3, &z3, &t3)
	f.add(&t3, &t0, &t0)
	f.add(&t0, &t3, &t0)
	f.sub(&t0, &t0, &t2)
	f.mul(&t0, &t0, &z3)
	f.add(&y3, &y3, &t0)
	f.mul(&t0, &p.y, &p.z)
	f.add(&t0, &t0, &t0)
	f.mul(&z3, &t0, &z3)
	f.sub(&x3, &x3, &z3)
	f.mul(&z3, &t0, &t1)
	f.add(&z3, &z3, &z3)
	f.add(&z3, &z3, &z3)

	q.x, q.y, q.z = x3, y3, z3
}

// selectPoint sets q = a when cond == 1 and q = b otherwise.
func (q *point) selectPoint(cond uint32, a, b *point) {
	selectInt(&q.x, cond, &a.x, &b.x)
	selectInt(&q.y, cond, &a.y, &b.y)
	selectInt(&q.z, cond, &a.z, &b.z)
}

// scalarMult sets q = k*p with one double and one add per bit, the add result
// kept or dropped by a masked select. k must already be reduced mod n.
func (q *point) scalarMult(k *Int, p *point) {
	acc := identity()
	var sum point
	for i := 255; i >= 0; i-- {
		acc.double(&acc)
		sum.add(&acc, p)
		bit := (k[i/32] >> (i % 32)) & 1
		acc.selectPoint(bit, &sum, &acc)
	}
	*q = acc
	sum.x.Zeroize()
	sum.y.Zeroize()
	sum.z.Zeroize()
}

// affine returns the normal-domain affine coordinates. ok is false for the
// identity.
func (q *point) affine() (x, y Int, ok bool) {
	if q.z.IsZero() {
		return Int{}, Int{}, false
	}
	var zinv Int
	fieldP.inv(&zinv, &q.z)
	fieldP.mul(&x, &q.x, &zinv)
	fieldP.mul(&y, &q.y, &zinv)
	fieldP.fromMont(&x, &x)
	fieldP.fromMont(&y, &y)
	return x, y, true
}

func fromAffine(x, y *Int) point {
	var p point
	fieldP.toMont(&p.x, x)
	fieldP.toMont(&p.y, y)
	p.z = fieldP.one
	return p
}

// ValidPoint reports whether (x, y) lies on the curve with 0 < x, y < p.
func ValidPoint(x, y Int) bool {
	if x.IsZero() || y.IsZero() {
		return false
	}
	if lessThan(&x, &P) == 0 || lessThan(&y, &P) == 0 {
		return false
	}
	var xm, ym, lhs, rhs, t Int
	fieldP.toMont(&xm, &x)
	fieldP.toMont(&ym, &y)
	fieldP.mul(&lhs, &ym, &ym)

	// x^3 - 3x + b
	fieldP.mul(&rhs, &xm, &xm)
	fieldP.mul(&rhs, &rhs, &xm)
	fieldP.add(&t, &xm, &xm)
	fieldP.add(&t, &t, &xm)
	fieldP.sub(&rhs, &rhs, &t)
	fieldP.add(&rhs, &rhs, &montB)

	a, b := lhs.Bytes(), rhs.Bytes()
	return secure.Equal(a[:], b[:])
}

// reduceScalar returns k mod n, failing for a zero result.
func reduceScalar(k Int) (Int, error) {
	orderN.reduce(&k, &k)
	if k.IsZero() {
		return Int{}, types.ErrZeroScalar
	}
	return k, nil
}

// PointMul returns k*(x, y). The input point is validated first.
func PointMul(k, x, y Int) (rx, ry Int, err error) {
	if !ValidPoint(x, y) {
		return Int{}, Int{}, types.ErrPointNotOnCurve
	}
	k, err = reduceScalar(k)
	if err != nil {
		return Int{}, Int{}, err
	}
	defer k.Zeroize()
	p := fromAffine(&x, &y)
	var q point
	q.scalarMult(&k, &p)
	rx, ry, ok := q.affine()
	if !ok {
		return Int{}, Int{}, fmt.Errorf("scalar multiple is the identity: %w", types.ErrPointNotOnCurve)
	}
	return rx, ry, nil
}

// BaseMul returns k*G.
func BaseMul(k Int) (x, y Int, err error) {
	k, err = reduceScalar(k)
	if err != nil {
		return Int{}, Int{}, err
	}
	defer k.Zeroize()
	var q point
	q.scalarMult(&k, &montG)
	x, y, ok := q.affine()
	if !ok {
		return Int{}, Int{}, types.ErrZeroScalar
	}
	return x, y, nil
}
