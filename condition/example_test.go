package condition_test

import (
	"fmt"

	"github.com/jonwraymond/notifyops/condition"
)

type email struct {
	To string
}

func ExampleAnd() {
	props := condition.MapSource{"mail.smtp.host": "smtp.example.com"}
	caps := condition.NewCapabilities("smtp")

	ready := condition.And[email](
		condition.RequiredCapability[email](caps, "smtp"),
		condition.RequiredConfig[email](props, "mail.smtp.host"),
		condition.Func[email](func(e email) bool { return e.To != "" }),
	)

	fmt.Println(ready.Accept(email{To: "jane@example.com"}))
	fmt.Println(ready.Accept(email{}))
	// Output:
	// true
	// false
}

func ExampleFirstOf() {
	explicit := condition.NewCapabilities()
	fallback := condition.ProbeFunc(func(name string) bool { return name == "sms" })

	probe := condition.FirstOf(explicit, fallback)
	fmt.Println(probe.Available("sms"))
	fmt.Println(probe.Available("fax"))
	// Output:
	// true
	// false
}
