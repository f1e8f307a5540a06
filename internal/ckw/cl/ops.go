package cl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/23skdu/longbow-kernelwriter/internal/ckw"
)

// checkBroadcast enforces (h == H || h == 1) && (w == W || w == 1).
func checkBroadcast(op, role string, dst, src *Tile) error {
	d, s := dst.info, src.info
	if (s.Height == d.Height || s.Height == 1) && (s.Width == d.Width || s.Width == 1) {
		return nil
	}
	return ckw.Violation(op, ckw.ErrShapeMismatch, fmt.Sprintf("%s %s (%dx%d) cannot broadcast to %s (%dx%d)",
		role, src.name, s.Height, s.Width, dst.name, d.Height, d.Width))
}

// broadcastPrefix is the explicit vector cast a 1-lane operand needs to fill a
// wider destination. Row broadcast needs nothing because Vector clamps.
func broadcastPrefix(dst, src *Tile) string {
	if dst.info.Width != 1 && src.info.Width == 1 {
		return "(" + typeName(src.info.DataType, dst.info.Width) + ")"
	}
	return ""
}

func checkSameType(op, role string, want, got *Tile) error {
	if want.info.DataType == got.info.DataType {
		return nil
	}
	return ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("%s %s is %s, want %s", role, got.name, got.info.DataType, want.info.DataType))
}

// checkMaskType checks the destination of a truth-valued op. A vector result
// is a signed integer mask the size of src; a scalar one keeps src's type.
func checkMaskType(op string, dst, src *Tile) error {
	want := src.info.DataType
	if dst.info.Width > 1 {
		want = want.MaskType()
	}
	if dst.info.DataType == want {
		return nil
	}
	return ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("destination %s is %s, want %s", dst.name, dst.info.DataType, want))
}

func checkWritable(op string, dst *Tile) error {
	if dst.IsConstant() {
		return ckw.Violation(op, ckw.ErrInvalidOperation, fmt.Sprintf("destination %s is a constant tile", dst.name))
	}
	return nil
}

func checkScalar(op, role string, t *Tile) error {
	if t.info.IsScalar() {
		return nil
	}
	return ckw.Violation(op, ckw.ErrShapeMismatch, fmt.Sprintf("%s %s must be 1x1, got %dx%d", role, t.name, t.info.Height, t.info.Width))
}

// OpAssign copies src into dst row by row.
func (w *KernelWriter) OpAssign(dst, src TileOperand) error {
	const op = "op_assign"
	if err := w.begin(op); err != nil {
		return err
	}
	tiles, err := w.resolve(op, dst, src)
	if err != nil {
		return w.fail(err)
	}
	d, s := tiles[0], tiles[1]
	typeErr := checkSameType(op, "source", d, s)
	if unary == ckw.UnaryLogicalNot {
		typeErr = checkMaskType(op, d, s)
	}
	if err := firstErr(
		checkWritable(op, d),
		typeErr,
		checkBroadcast(op, "source", d, s),
	); err != nil {
		return w.fail(err)
	}

	prefix := broadcastPrefix(d, s)
	var b strings.Builder
	for y := int32(0); y < d.info.Height; y++ {
		b.WriteString(joinLines(d.Vector(y).Str, " = ", prefix, s.Vector(y).Str, ";\n"))
	}
	w.appendCode(op, b.String())
	return nil
}

// OpCast converts src to dst's type. It is the only type conversion.
func (w *KernelWriter) OpCast(dst, src TileOperand, policy ckw.ConvertPolicy) error {
	const op = "op_cast"
	if err := w.begin(op); err != nil {
		return err
	}
	tiles, err := w.resolve(op, dst, src)
	if err != nil {
		return w.fail(err)
	}
	d, s := tiles[0], tiles[1]
	if err := checkWritable(op, d); err != nil {
		return w.fail(err)
	}
	if d.info.DataType == s.info.DataType {
		return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("source and destination are both %s", d.info.DataType)))
	}
	if policy == ckw.ConvertSaturate && d.info.DataType.IsFloat() {
		return w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, "saturation requires a non-floating destination"))
	}
	if err := checkBroadcast(op, "source", d, s); err != nil {
		return w.fail(err)
	}

	sat := ""
	if policy == ckw.ConvertSaturate {
		sat = "_sat"
	}
	prefix := ""
	if d.info.Width != 1 && s.info.Width == 1 {
		prefix = "(" + typeName(d.info.DataType, d.info.Width) + ")"
	}
	convert := "convert_" + typeName(d.info.DataType, s.info.Width) + sat

	var b strings.Builder
	for y := int32(0); y < d.info.Height; y++ {
		b.WriteString(joinLines(d.Vector(y).Str, " = ", prefix, convert, "(", s.Vector(y).Str, ");\n"))
	}
	w.appendCode(op, b.String())
	return nil
}

// OpUnary applies a one-operand op.
func (w *KernelWriter) OpUnary(dst TileOperand, unary ckw.UnaryOp, src TileOperand) error {
	const op = "op_unary"
	if err := w.begin(op); err != nil {
		return err
	}
	tiles, err := w.resolve(op, dst, src)
	if err != nil {
		return w.fail(err)
	}
	d, s := tiles[0], tiles[1]

	spell, ok := unarySpelling(unary)
	if !ok {
		return w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, unary.String()))
	}
	if err := firstErr(
		checkWritable(op, d),
		checkSameType(op, "source", d, s),
		checkBroadcast(op, "source", d, s),
	); err != nil {
		return w.fail(err)
	}
	if spell.isFunc && !s.info.DataType.IsFloat() {
		return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("%s requires a floating type, got %s", unary, s.info.DataType)))
	}
	if unary == ckw.UnaryBitwiseNot && !s.info.DataType.IsInteger() {
		return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("%s requires an integer type, got %s", unary, s.info.DataType)))
	}

	open, close := spell.name, ""
	if spell.isFunc {
		open, close = spell.name+"(", ")"
	}
	prefix := broadcastPrefix(d, s)

	var b strings.Builder
	for y := int32(0); y < d.info.Height; y++ {
		b.WriteString(joinLines(d.Vector(y).Str, " = ", prefix, open, s.Vector(y).Str, close, ";\n"))
	}
	w.appendCode(op, b.String())
	return nil
}

// OpBinary applies a two-operand op, or the unrolled matmul accumulation.
func (w *KernelWriter) OpBinary(dst TileOperand, binary ckw.BinaryOp, lhs, rhs TileOperand) error {
	const op = "op_binary"
	if err := w.begin(op); err != nil {
		return err
	}
	tiles, err := w.resolve(op, dst, lhs, rhs)
	if err != nil {
		return w.fail(err)
	}
	d, l, r := tiles[0], tiles[1], tiles[2]
	if err := checkWritable(op, d); err != nil {
		return w.fail(err)
	}

	if binary == ckw.BinaryMatMulNtT {
		return w.matMulNtT(d, l, r)
	}

	spell, ok := binarySpelling(binary, l.info.DataType)
	if !ok {
		return w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, binary.String()))
	}
	typeErr := checkSameType(op, "rhs", l, r)
	if typeErr == nil {
		if binary.IsComparison() {
			typeErr = checkMaskType(op, d, l)
		} else {
			typeErr = checkSameType(op, "lhs", d, l)
		}
	}
	if err := firstErr(
		typeErr,
		checkBroadcast(op, "lhs", d, l),
		checkBroadcast(op, "rhs", d, r),
	); err != nil {
		return w.fail(err)
	}
	if binary == ckw.BinaryBitwiseXOR && !l.info.DataType.IsInteger() {
		return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("%s requires an integer type, got %s", binary, l.info.DataType)))
	}

	open, sep, close := " = ", " "+spell.name+" ", ";\n"
	if spell.isFunc {
		open, sep, close = " = "+spell.name+"(", ", ", ");\n"
	}
	lp, rp := broadcastPrefix(d, l), broadcastPrefix(d, r)

	var b strings.Builder
	for y := int32(0); y < d.info.Height; y++ {
		b.WriteString(joinLines(d.Vector(y).Str, open, lp, l.Vector(y).Str, sep, rp, r.Vector(y).Str, close))
	}
	w.appendCode(op, b.String())
	return nil
}

// matMulNtT unrolls dst[y][x] += lhs[y][k] * rhs[x][k] into one fma per
// (y, x, k), y-major.
func (w *KernelWriter) matMulNtT(d, l, r *Tile) error {
	const op = "op_binary"
	dt := d.info.DataType
	if !dt.IsFloat() || l.info.DataType != dt || r.info.DataType != dt {
		return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch,
			fmt.Sprintf("matmul needs one floating type, got dst %s lhs %s rhs %s", dt, l.info.DataType, r.info.DataType)))
	}
	if l.info.Height != d.info.Height || r.info.Height != d.info.Width || l.info.Width != r.info.Width {
		return w.fail(ckw.Violation(op, ckw.ErrShapeMismatch,
			fmt.Sprintf("matmul dst %dx%d, lhs %dx%d, rhs %dx%d", d.info.Height, d.info.Width, l.info.Height, l.info.Width, r.info.Height, r.info.Width)))
	}

	var b strings.Builder
	for y := int32(0); y < d.info.Height; y++ {
		for x := int32(0); x < d.info.Width; x++ {
			acc := d.Scalar(y, x).Str
			for k := int32(0); k < l.info.Width; k++ {
				b.WriteString(joinLines(acc, " = fma(", l.Scalar(y, k).Str, ", ", r.Scalar(x, k).Str, ", ", acc, ");\n"))
			}
		}
	}
	w.appendCode("op_matmul", b.String())
	return nil
}

// OpTernary applies select(a, b, cond) or clamp(x, lo, hi).
func (w *KernelWriter) OpTernary(dst TileOperand, ternary ckw.TernaryOp, first, second, third TileOperand) error {
	const op = "op_ternary"
	if err := w.begin(op); err != nil {
		return err
	}
	tiles, err := w.resolve(op, dst, first, second, third)
	if err != nil {
		return w.fail(err)
	}
	d, a, b, c := tiles[0], tiles[1], tiles[2], tiles[3]

	name, ok := ternarySpelling(ternary)
	if !ok {
		return w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, ternary.String()))
	}
	thirdType := checkSameType(op, "third", d, c)
	if ternary == ckw.TernarySelect {
		thirdType = nil
		if ct := c.info.DataType; !ct.IsInteger() && ct != ckw.DataTypeBool {
			thirdType = ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("select condition %s is %s, want an integer type", c.name, ct))
		}
	}
	if err := firstErr(
		checkWritable(op, d),
		checkSameType(op, "first", d, a),
		checkSameType(op, "second", d, b),
		thirdType,
		checkBroadcast(op, "first", d, a),
		checkBroadcast(op, "second", d, b),
		checkBroadcast(op, "third", d, c),
	); err != nil {
		return w.fail(err)
	}

	ap, bp, cp := broadcastPrefix(d, a), broadcastPrefix(d, b), broadcastPrefix(d, c)
	var sb strings.Builder
	for y := int32(0); y < d.info.Height; y++ {
		sb.WriteString(joinLines(d.Vector(y).Str, " = ", name, "(",
			ap, a.Vector(y).Str, ", ", bp, b.Vector(y).Str, ", ", cp, c.Vector(y).Str, ");\n"))
	}
	w.appendCode(op, sb.String())
	return nil
}

// OpGetGlobalID writes the work-item id along dim into an int scalar.
func (w *KernelWriter) OpGetGlobalID(dst TileOperand, dim int32) error {
	const op = "op_get_global_id"
	if err := w.begin(op); err != nil {
		return err
	}
	tiles, err := w.resolve(op, dst)
	if err != nil {
		return w.fail(err)
	}
	d := tiles[0]
	if err := firstErr(checkWritable(op, d), checkScalar(op, "destination", d)); err != nil {
		return w.fail(err)
	}
	if d.info.DataType != ckw.DataTypeInt32 {
		return w.fail(ckw.Violation(op, ckw.ErrTypeMismatch, fmt.Sprintf("destination %s is %s, want int32", d.name, d.info.DataType)))
	}
	if dim < 0 || dim > 2 {
		return w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, fmt.Sprintf("dimension %d not in [0, 2]", dim)))
	}
	w.appendCode(op, joinLines(d.Scalar(0, 0).Str, " = get_global_id(", strconv.Itoa(int(dim)), ");\n"))
	return nil
}

// OpReturn ends the work-item early.
func (w *KernelWriter) OpReturn() error {
	const op = "op_return"
	if err := w.begin(op); err != nil {
		return err
	}
	w.appendCode(op, "return;\n")
	return nil
}

// OpComment emits a line comment when comments are enabled.
func (w *KernelWriter) OpComment(text string) error {
	const op = "op_comment"
	if err := w.begin(op); err != nil {
		return err
	}
	if !w.cfg.EmitComments {
		return nil
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(joinLines("// ", line, "\n"))
	}
	w.appendCode(op, b.String())
	return nil
}

// OpWriteRawCode appends code verbatim.
func (w *KernelWriter) OpWriteRawCode(code string) error {
	const op = "op_write_raw_code"
	if err := w.begin(op); err != nil {
		return err
	}
	w.appendCode(op, code)
	return nil
}

// OpIf emits if(lhs op rhs) { body }.
func (w *KernelWriter) OpIf(lhs TileOperand, cond ckw.BinaryOp, rhs TileOperand, body func() error) error {
	return w.conditional("op_if", "if(", lhs, cond, rhs, body)
}

// OpElseIf emits else if(lhs op rhs) { body }.
func (w *KernelWriter) OpElseIf(lhs TileOperand, cond ckw.BinaryOp, rhs TileOperand, body func() error) error {
	return w.conditional("op_else_if", "else if(", lhs, cond, rhs, body)
}

// OpElse emits else { body }.
func (w *KernelWriter) OpElse(body func() error) error {
	const op = "op_else"
	if err := w.begin(op); err != nil {
		return err
	}
	w.appendCode(op, "else\n{\n")
	return w.closeBlock(op, body)
}

func (w *KernelWriter) conditional(op, keyword string, lhs TileOperand, cond ckw.BinaryOp, rhs TileOperand, body func() error) error {
	if err := w.begin(op); err != nil {
		return err
	}
	expr, err := w.comparison(op, lhs, cond, rhs)
	if err != nil {
		return w.fail(err)
	}
	w.appendCode(op, joinLines(keyword, expr, ")\n{\n"))
	return w.closeBlock(op, body)
}

// OpForLoop emits for(; var op cond; update op= value) { body }.
func (w *KernelWriter) OpForLoop(variable TileOperand, cond ckw.BinaryOp, condValue TileOperand,
	update TileOperand, updateOp ckw.AssignOp, updateValue TileOperand, body func() error) error {
	const op = "op_for_loop"
	if err := w.begin(op); err != nil {
		return err
	}
	expr, err := w.comparison(op, variable, cond, condValue)
	if err != nil {
		return w.fail(err)
	}
	tiles, err := w.resolve(op, update, updateValue)
	if err != nil {
		return w.fail(err)
	}
	u, v := tiles[0], tiles[1]
	if err := firstErr(checkWritable(op, u), checkScalar(op, "update variable", u), checkScalar(op, "update value", v)); err != nil {
		return w.fail(err)
	}
	if updateOp != ckw.AssignIncrement && updateOp != ckw.AssignDecrement {
		return w.fail(ckw.Violation(op, ckw.ErrInvalidOperation, updateOp.String()))
	}

	w.appendCode(op, joinLines("for(; ", expr, "; ", u.Scalar(0, 0).Str, " ", updateOp.String(), " ", v.Scalar(0, 0).Str, ")\n{\n"))
	return w.closeBlock(op, body)
}

// comparison renders "lhs op rhs" for scalar operands.
func (w *KernelWriter) comparison(op string, lhs TileOperand, cond ckw.BinaryOp, rhs TileOperand) (string, error) {
	tiles, err := w.resolve(op, lhs, rhs)
	if err != nil {
		return "", err
	}
	l, r := tiles[0], tiles[1]
	if err := firstErr(checkScalar(op, "lhs", l), checkScalar(op, "rhs", r)); err != nil {
		return "", err
	}
	if !cond.IsComparison() {
		return "", ckw.Violation(op, ckw.ErrInvalidOperation, fmt.Sprintf("%s is not a comparison", cond))
	}
	spell, _ := binarySpelling(cond, l.info.DataType)
	return joinLines(l.Scalar(0, 0).Str, " ", spell.name, " ", r.Scalar(0, 0).Str), nil
}

func (w *KernelWriter) closeBlock(op string, body func() error) error {
	if body != nil {
		if err := body(); err != nil {
			return w.fail(err)
		}
	}
	if w.err != nil {
		return w.err
	}
	w.appendCode(op, "}\n")
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
